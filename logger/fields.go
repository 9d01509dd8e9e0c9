package logger

// Common structured field names used across the server.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldStep      = "step"
	FieldStepIndex = "step_index"
	FieldTokenID   = "token_id"
	FieldURL       = "url"
	FieldFileName  = "file_name"
)
