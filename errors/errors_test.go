package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := UnknownStep("frobnicate")
	want := "UNKNOWN_STEP: Unknown pipeline step type: frobnicate"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestAppError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Network("range read", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("got status %d, want 502", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Error("network errors must be retryable")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"app error", NotFound("zip member", "a.txt"), ErrCodeNotFound},
		{"wrapped app error", fmt.Errorf("step failed: %w", CryptoAuth("no packet opened")), ErrCodeCryptoAuth},
		{"context cancelled", context.Canceled, ErrCodeCancelled},
		{"foreign error", errors.New("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := UnsupportedOperation("seek")
	if !IsCode(err, ErrCodeUnsupportedOperation) {
		t.Error("expected IsCode to match")
	}
	if IsCode(err, ErrCodeNotFound) {
		t.Error("unexpected IsCode match")
	}
}

func TestToResponse(t *testing.T) {
	err := MissingArgument("file_name")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeInvalidArguments {
		t.Errorf("got code %s", resp.Error.Code)
	}
	if resp.Error.Details["argument"] != "file_name" {
		t.Errorf("details not carried: %v", resp.Error.Details)
	}
}

func TestRetryableCodes(t *testing.T) {
	if !IsRetryableCode(ErrCodeNetwork) {
		t.Error("NETWORK_ERROR should be retryable")
	}
	for _, code := range []ErrorCode{ErrCodeFormat, ErrCodeCryptoAuth, ErrCodeNotFound, ErrCodeCancelled} {
		if IsRetryableCode(code) {
			t.Errorf("%s should not be retryable", code)
		}
	}
}
