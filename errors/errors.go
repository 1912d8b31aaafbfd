// Package errors vends the error type shared across juspost components, carrying
// an error code which maps to an http response status at the request boundary.
package errors

import (
	"errors"
	"net/http"
	"strings"
)

type ErrCode string

const (
	ErrCodeNotImplemented ErrCode = "NotImplemented"
	ErrCodeNotFound       ErrCode = "NotFound"
	ErrCodeServiceFailure ErrCode = "ServiceFailure"
	ErrCodeBadInput       ErrCode = "BadRequest"
	ErrCodeForbidden      ErrCode = "Forbidden"
)

type Err struct {
	Code  ErrCode
	msg   string
	cause error
}

func (e *Err) Error() string {
	return e.msg
}

// Trace returns the stacktrace associated with the error
func (e *Err) Trace() string {
	b := &strings.Builder{}
	b.WriteString(e.msg)
	depth := 1
	err := errors.Unwrap(e)
	for err != nil {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("\t", depth))
		b.WriteString("Caused by: ")
		b.WriteString(err.Error())
		err = errors.Unwrap(err)
		depth++
	}
	return b.String()
}

func (e *Err) Unwrap() error {
	return e.cause
}

// prefer New*(msg) over New*(msg, cause) since the latter's method signature has less
// readability - user needs to look up docs to know the 2nd param is for cause, while
// the first one can use WithCause() to be explicit
func (e *Err) WithCause(c error) *Err {
	e.cause = c
	return e
}

func (e *Err) WithMsg(m string) *Err {
	e.msg = m
	return e
}

func NewServiceFailure(m string) *Err {
	return &Err{
		Code: ErrCodeServiceFailure,
		msg:  m,
	}
}

func NewNotFound(m string) *Err {
	return &Err{
		Code: ErrCodeNotFound,
		msg:  m,
	}
}

func NewBadInput(m string) *Err {
	return &Err{
		Code: ErrCodeBadInput,
		msg:  m,
	}
}

func NewForbidden(m string) *Err {
	return &Err{
		Code: ErrCodeForbidden,
		msg:  m,
	}
}

func NewNotImplemented() *Err {
	return &Err{
		Code: ErrCodeNotImplemented,
		msg:  "Not implemented",
	}
}

// StatusCode returns the http response status code associated with the Err value
func (e *Err) StatusCode() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBadInput:
		return http.StatusBadRequest
	case ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
