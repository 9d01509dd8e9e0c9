package server

import (
	stderrors "errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/logger"
)

// writeCarrier streams the final pipeline output to the client. JSON
// carriers become a plain 200 body; everything else is served as an
// attachment with metadata-supplied headers.
func writeCarrier(c *gin.Context, out carrier.Carrier, log *logger.Logger) {
	meta := out.Metadata()

	contentType := meta.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if meta.Charset != "" {
		contentType = mime.FormatMediaType(contentType, map[string]string{"charset": meta.Charset})
	}
	c.Header("Content-Type", contentType)

	if meta.MediaType != "application/json" {
		name := meta.FileName
		if name == "" {
			name = "output"
		}
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	for k, v := range meta.Headers {
		c.Header(k, v)
	}

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, carrier.Reader(c.Request.Context(), out)); err != nil {
		log.WithError(err).Error("response stream aborted", map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		// Headers are already on the wire; drop the connection so the
		// client sees a truncated transfer rather than a clean EOF.
		panic(http.ErrAbortHandler)
	}
}

// writeError renders err as the JSON error envelope with its mapped
// HTTP status.
func writeError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, appErr.ToResponse())
}
