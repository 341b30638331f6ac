// Package apperr содержит классы ошибок, общие для сервисов и хендлеров.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransient
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type Code string

const (
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeEmptyCart           Code = "EMPTY_CART"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeInsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	CodeEmailTaken          Code = "EMAIL_TAKEN"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeLockTimeout         Code = "LOCK_TIMEOUT"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
)

// FieldError описывает одно нарушенное правило поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(fields ...FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidInput,
		Message: "request validation failed",
		Fields:  fields,
	}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Code: CodeLockTimeout, Message: "resource is busy, please try again", Err: err}
}

func Fatal(err error) *Error {
	return &Error{Kind: KindFatal, Code: CodeConstraintViolation, Message: "storage constraint violated", Err: err}
}

// As ищет первую *Error в цепочке err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf возвращает код ошибки или "", если ошибка не классифицирована
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
