package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline composition errors
const (
	// ErrCodeInvalidArguments indicates missing or malformed step arguments.
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	// ErrCodeUnknownStep indicates an unrecognised step type name.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"
	// ErrCodePipelineShape indicates an illegal step composition, such as a
	// fan-out step that is not the final step.
	ErrCodePipelineShape ErrorCode = "PIPELINE_SHAPE"
)

// Data errors
const (
	// ErrCodeNotFound indicates a missing ZIP member, directory, or upstream 404.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeFormat indicates a malformed ZIP, Crypt4GH header, or image.
	ErrCodeFormat ErrorCode = "FORMAT_ERROR"
	// ErrCodeCryptoAuth indicates that no header packet could be opened or
	// that AEAD verification of a data segment failed.
	ErrCodeCryptoAuth ErrorCode = "CRYPTO_AUTH"
)

// Stream errors
const (
	// ErrCodeNetwork indicates a transient I/O failure against a source URL.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeUnsupportedOperation indicates seek/tell on a non-seekable carrier.
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	// ErrCodeResourceLimit indicates an input exceeding the buffering cap.
	ErrCodeResourceLimit ErrorCode = "RESOURCE_LIMIT"
	// ErrCodeCancelled indicates the pipeline was torn down mid-run.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Token and internal errors
const (
	// ErrCodeInvalidToken indicates a pipeline token that failed verification.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeTokenExpired indicates an expired pipeline token.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInternal indicates an unexpected server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeNetwork: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
