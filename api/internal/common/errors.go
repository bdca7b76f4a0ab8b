package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries a machine readable code next to the wrapped cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrExternalService = errors.New("external service failure")
	ErrBusy            = errors.New("service busy")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidInput builds a caller-facing validation error.
func InvalidInput(format string, args ...any) error {
	return NewAppError("INVALID_INPUT", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// External wraps a collaborator failure under ErrExternalService, keeping the original text.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return NewAppError("EXTERNAL_SERVICE", service, errors.Join(ErrExternalService, err))
}

// HTTPStatus maps an error kind onto the status code returned to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the human readable part of err without the error code prefix.
func Message(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		if errors.Is(ae.Cause, ErrInvalidInput) || ae.Cause == nil {
			return ae.Message
		}
		if errors.Is(ae.Cause, ErrExternalService) {
			return ae.Message + ": " + unwrapJoined(ae.Cause).Error()
		}
	}
	return err.Error()
}

// unwrapJoined drops the sentinel from an errors.Join pair so the message shows the real cause.
func unwrapJoined(err error) error {
	j, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err
	}
	for _, e := range j.Unwrap() {
		if e != ErrExternalService {
			return e
		}
	}
	return err
}
