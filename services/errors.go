package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindInternal             ErrorKind = "internal"
	KindValidation           ErrorKind = "validation"
	KindNotFound             ErrorKind = "not_found"
	KindConflict             ErrorKind = "conflict"
	KindForbidden            ErrorKind = "forbidden"
	KindExpiredOrExhausted   ErrorKind = "expired_or_exhausted"
	KindIntegrity            ErrorKind = "integrity"
	KindTooLarge             ErrorKind = "too_large"
	KindUnsupportedOperation ErrorKind = "unsupported_operation"
	KindUpstream             ErrorKind = "upstream"
)

var kindStatus = map[ErrorKind]int{
	KindInternal:             http.StatusInternalServerError,
	KindValidation:           http.StatusBadRequest,
	KindNotFound:             http.StatusNotFound,
	KindConflict:             http.StatusConflict,
	KindForbidden:            http.StatusForbidden,
	KindExpiredOrExhausted:   http.StatusGone,
	KindIntegrity:            http.StatusInternalServerError,
	KindTooLarge:             http.StatusRequestEntityTooLarge,
	KindUnsupportedOperation: http.StatusNotImplemented,
	KindUpstream:             http.StatusBadGateway,
}

// errorData is the structured payload carried by some errors.
type errorData = map[string]interface{}

type AppError struct {
	Kind     ErrorKind
	HTTPCode int
	Message  string
	Data     interface{}
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: kindStatus[kind], Message: message, Err: err}
}

func newAppErrorWithData(kind ErrorKind, message string, data interface{}, err error) *AppError {
	return &AppError{Kind: kind, HTTPCode: kindStatus[kind], Message: message, Data: data, Err: err}
}

func internalError(message string, err error) *AppError {
	return newAppError(KindInternal, message, err)
}

// KindOf returns the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Kind == kind
}
