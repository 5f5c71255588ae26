/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"net/http"
	"strings"
	"unicode"
)

// Error represents an error details.
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeInternal        = "internalError"
	ErrCodeNotFound        = "notFound"
	ErrCodeTooManyRequests = "tooManyRequests"
)

// Error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageInternal        = "Internal error."
	ErrMessageNotFound        = "Not found."
	ErrMessageTooManyRequests = "Too many requests."
)

// NewError creates a new Error with specified params.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates a new internal error with specified domain.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// NewTooManyRequestsError creates a new error for a rejected request with specified domain.
func NewTooManyRequestsError(domain string) *Error {
	return NewError(domain, ErrCodeTooManyRequests, ErrMessageTooManyRequests)
}

// NewErrorForStatus creates a new error whose code is derived from the HTTP status text
// (e.g. 404 -> "notFound", 400 -> "badRequest").
func NewErrorForStatus(domain string, httpCode int, message string) *Error {
	return NewError(domain, httpCode2ErrorCode(httpCode), message)
}

// AddContext adds value to error context.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[field] = value
	return e
}

func httpCode2ErrorCode(httpCode int) string {
	if httpCode == http.StatusInternalServerError {
		return ErrCodeInternal
	}
	var builder strings.Builder
	capitalizeNext := false
	for _, char := range http.StatusText(httpCode) {
		if unicode.IsSpace(char) {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			builder.WriteRune(unicode.ToTitle(char))
			capitalizeNext = false
			continue
		}
		builder.WriteRune(unicode.ToLower(char))
	}
	return builder.String()
}
