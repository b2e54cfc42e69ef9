// Package errors defines the structured error types used across the layout
// pipeline.
//
// Every failure the pipeline can report is a *LayoutError carrying a type, a
// stable code and a recoverability flag. Recoverable errors are folded into a
// per-component ProcessingResult by the build orchestrator; non-recoverable
// ones (configuration, registry construction) abort the whole operation.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeScan     ErrorType = "scan"
	ErrorTypeResolve  ErrorType = "resolve"
	ErrorTypeEngine   ErrorType = "engine"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeLayoutNotFound    = "ERR_LAYOUT_NOT_FOUND"
	ErrCodeInvalidLayoutPath = "ERR_INVALID_LAYOUT_PATH"
	ErrCodeNoEngine          = "ERR_NO_ENGINE"
	ErrCodeEngineInit        = "ERR_ENGINE_INIT"
	ErrCodeEngineShape       = "ERR_ENGINE_SHAPE"
	ErrCodeDuplicateEngine   = "ERR_DUPLICATE_ENGINE"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeRenderTimeout     = "ERR_RENDER_TIMEOUT"
	ErrCodeReadFailed        = "ERR_READ_FAILED"
	ErrCodeWriteFailed       = "ERR_WRITE_FAILED"
	ErrCodeDeleteFailed      = "ERR_DELETE_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeConfigNotFound    = "ERR_CONFIG_NOT_FOUND"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// Sentinels for errors.Is comparisons. Matching is by type and code only.
var (
	ErrLayoutNotFound    = &LayoutError{Type: ErrorTypeResolve, Code: ErrCodeLayoutNotFound}
	ErrInvalidLayoutPath = &LayoutError{Type: ErrorTypeResolve, Code: ErrCodeInvalidLayoutPath}
	ErrNoEngine          = &LayoutError{Type: ErrorTypeEngine, Code: ErrCodeNoEngine}
	ErrEngineShape       = &LayoutError{Type: ErrorTypeConfig, Code: ErrCodeEngineShape}
	ErrRenderTimeout     = &LayoutError{Type: ErrorTypeRender, Code: ErrCodeRenderTimeout}
)

// LayoutError is a structured error type with context.
type LayoutError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *LayoutError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *LayoutError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *LayoutError) Is(target error) bool {
	var t *LayoutError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// Reason returns the message without code or location decoration. It is what
// ends up in ProcessingResult.Error.
func (e *LayoutError) Reason() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// WithContext adds context information to the error.
func (e *LayoutError) WithContext(key string, value interface{}) *LayoutError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *LayoutError) WithLocation(filePath string, line, column int) *LayoutError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// NewScanError creates a scan error. The file could not be read.
func NewScanError(path string, cause error) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeScan,
		Code:        ErrCodeReadFailed,
		Message:     "failed to read component",
		Cause:       cause,
		FilePath:    path,
		Recoverable: true,
	}
}

// NewResolveError creates a recoverable resolution error.
func NewResolveError(code, message string) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeResolve,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewEngineError creates an engine error.
func NewEngineError(code, message string, cause error) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeEngine,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewRenderError creates a render error.
func NewRenderError(templatePath string, cause error) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeRender,
		Code:        ErrCodeRenderFailed,
		Cause:       cause,
		FilePath:    templatePath,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *LayoutError {
	return &LayoutError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var le *LayoutError
	if errors.As(err, &le) {
		return le.Recoverable
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var le *LayoutError
	if errors.As(err, &le) {
		return le.Type == ErrorTypeConfig
	}

	return false
}

// Reason returns the undecorated message of a LayoutError, or err.Error()
// for any other error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var le *LayoutError
	if errors.As(err, &le) {
		return le.Reason()
	}
	return err.Error()
}
