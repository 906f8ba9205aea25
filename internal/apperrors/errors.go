// Package apperrors defines the structured error taxonomy shared by the
// validation service, parsers and the processing orchestrator, plus the
// bounded in-memory error log.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Code is a stable machine-readable error code surfaced to callers.
type Code string

const (
	CodeFileNotFound            Code = "FILE_NOT_FOUND"
	CodeInvalidFileType         Code = "INVALID_FILE_TYPE"
	CodeFileTooLarge            Code = "FILE_TOO_LARGE"
	CodeMissingRequiredField    Code = "MISSING_REQUIRED_FIELD"
	CodeMissingTransactionField Code = "MISSING_TRANSACTION_FIELD"
	CodeInvalidDate             Code = "INVALID_DATE"
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeValidationError         Code = "VALIDATION_ERROR"
	CodePermissionDenied        Code = "PERMISSION_DENIED"
	CodeProcessingError         Code = "PROCESSING_ERROR"
	CodeSmallFileSize           Code = "SMALL_FILE_SIZE" // warning, never fatal

	// Per-parser codes.
	CodePDFParseError   Code = "PDF_PARSE_ERROR"
	CodeCSVParseError   Code = "CSV_PARSE_ERROR"
	CodeMpesaParseError Code = "MPESA_PARSE_ERROR"
	CodeSaccoParseError Code = "SACCO_PARSE_ERROR"

	// Oracle codes.
	CodeOracleRateLimited Code = "ORACLE_RATE_LIMITED"
	CodeOracleMalformed   Code = "ORACLE_MALFORMED_RESPONSE"
	CodeAllChunksFailed   Code = "ALL_CHUNKS_FAILED"
)

// Error is the application error type. It carries a stable code, a
// conventional status classification and optional processing context; a raw
// stack trace is never surfaced.
type Error struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	Stage      string         `json:"stage,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Cause      error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status maps the code onto a conventional HTTP-style status class.
func (e *Error) Status() int {
	switch e.Code {
	case CodeFileNotFound:
		return http.StatusNotFound
	case CodeInvalidFileType, CodeMissingRequiredField, CodeMissingTransactionField,
		CodeInvalidDate, CodeInvalidAmount, CodeValidationError:
		return http.StatusBadRequest
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeOracleRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithStage tags the error with the processing stage it occurred in.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithDocument tags the error with the document being processed.
func (e *Error) WithDocument(documentID string) *Error {
	e.DocumentID = documentID
	return e
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error with a code and message.
func Wrap(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Classify buckets an arbitrary runtime error into the fixed taxonomy:
// file-not-found, permission-denied, validation-error or processing-error.
// Already-classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Wrap(err, CodeFileNotFound, "file not found")
	case errors.Is(err, os.ErrPermission):
		return Wrap(err, CodePermissionDenied, "permission denied")
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return Wrap(err, CodeFileNotFound, "file not found")
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "access denied"):
		return Wrap(err, CodePermissionDenied, "permission denied")
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return Wrap(err, CodeValidationError, "validation failed")
	default:
		return Wrap(err, CodeProcessingError, "processing failed")
	}
}
