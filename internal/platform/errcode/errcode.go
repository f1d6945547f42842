// Package errcode defines the error taxonomy shared by every core operation.
// Handlers translate codes to HTTP statuses at the edge; services and repos
// return *Error values and never raw strings.
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	NotAuthorized                Code = "NOT_AUTHORIZED"
	InvalidAmount                Code = "INVALID_AMOUNT"
	PatientNotFound              Code = "PATIENT_NOT_FOUND"
	ProviderNotFound             Code = "PROVIDER_NOT_FOUND"
	RecordNotFound               Code = "RECORD_NOT_FOUND"
	AlreadyRegistered            Code = "ALREADY_REGISTERED"
	InvalidPermission            Code = "INVALID_PERMISSION"
	AccessDenied                 Code = "ACCESS_DENIED"
	DataExpired                  Code = "DATA_EXPIRED"
	PaymentFailed                Code = "PAYMENT_FAILED"
	EmergencyRecordLimitExceeded Code = "EMERGENCY_RECORD_LIMIT_EXCEEDED"
)

// Error is a domain error carrying a taxonomy code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error with the given code and formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the taxonomy code from err, unwrapping as needed.
// Returns empty string when err carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a taxonomy code to the status returned by handlers.
func HTTPStatus(code Code) int {
	switch code {
	case NotAuthorized:
		return http.StatusForbidden
	case AccessDenied:
		return http.StatusForbidden
	case PatientNotFound, ProviderNotFound, RecordNotFound:
		return http.StatusNotFound
	case AlreadyRegistered:
		return http.StatusConflict
	case InvalidAmount, InvalidPermission:
		return http.StatusBadRequest
	case DataExpired:
		return http.StatusGone
	case PaymentFailed:
		return http.StatusPaymentRequired
	case EmergencyRecordLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
