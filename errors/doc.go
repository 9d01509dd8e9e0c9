// Package errors provides unified error handling for the pipeline server.
// It implements structured error types with machine-readable codes, HTTP
// status mapping, and retryable detection. Every failure that crosses a
// package boundary is an *AppError so the HTTP layer can map it without
// inspecting error strings.
package errors
