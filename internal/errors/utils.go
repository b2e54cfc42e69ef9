package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a LayoutError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *LayoutError {
	if err == nil {
		return nil
	}

	// If it's already a LayoutError, preserve its location and recoverability
	var le *LayoutError
	if errors.As(err, &le) {
		return &LayoutError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       le,
			Context:     le.Context,
			FilePath:    le.FilePath,
			Line:        le.Line,
			Column:      le.Column,
			Recoverable: le.Recoverable,
		}
	}

	return &LayoutError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType != ErrorTypeConfig && errType != ErrorTypeInternal,
	}
}

// WrapIO wraps an error as an I/O error for the given path
func WrapIO(err error, code, message, path string) *LayoutError {
	le := Wrap(err, ErrorTypeIO, code, message)
	if le != nil {
		le.FilePath = path
	}
	return le
}

// WrapConfig wraps an error as a configuration error (non-recoverable)
func WrapConfig(err error, code, message string) *LayoutError {
	le := Wrap(err, ErrorTypeConfig, code, message)
	if le != nil {
		le.Recoverable = false
	}
	return le
}

// WrapRender wraps an engine failure as a render error for the template path
func WrapRender(err error, templatePath string) *LayoutError {
	if err == nil {
		return nil
	}
	var le *LayoutError
	if errors.As(err, &le) && le.Type == ErrorTypeRender {
		return le
	}
	return NewRenderError(templatePath, err)
}
