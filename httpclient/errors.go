package httpclient

import (
	"fmt"
	"net/http"

	"github.com/kbukum/filepipe/errors"
)

// statusError maps an unexpected upstream status code onto an AppError.
// 5xx and 429 are retryable network failures; 4xx are terminal.
func statusError(op, url string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return errors.NotFound("source file", url)
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.Network(op, fmt.Errorf("upstream status %d", status)).WithDetail("url", url)
	default:
		appErr := errors.New(errors.ErrCodeNetwork, fmt.Sprintf("Unexpected upstream status %d.", status), http.StatusBadGateway)
		appErr.Retryable = false
		return appErr.WithDetail("url", url)
	}
}
