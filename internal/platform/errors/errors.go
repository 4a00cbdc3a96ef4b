// Package errors provides the typed error taxonomy every service in the
// compliance engine fails with. The pure packages (condition, window,
// engine) never use this; the few errors they return (a malformed raw
// condition tree, an unknown window unit) are plain errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the abstract error kinds from spec §7. The HTTP shell maps
// each to a transport status; nothing below the shell should ever inspect
// an HTTP status directly.
type Code string

const (
	CodeEntityNotFound            Code = "ENTITY_NOT_FOUND"
	CodeValidationError            Code = "VALIDATION_ERROR"
	CodeBusinessRuleViolation      Code = "BUSINESS_RULE_VIOLATION"
	CodeInvalidState               Code = "INVALID_STATE"
	CodeDuplicateOperation         Code = "DUPLICATE_OPERATION"
	CodeInactiveEntity             Code = "INACTIVE_ENTITY"
	CodeOrganizationContextRequired Code = "ORGANIZATION_CONTEXT_REQUIRED"
)

var httpStatusByCode = map[Code]int{
	CodeEntityNotFound:             http.StatusNotFound,
	CodeValidationError:            http.StatusBadRequest,
	CodeBusinessRuleViolation:      http.StatusUnprocessableEntity,
	CodeInvalidState:               http.StatusConflict,
	CodeDuplicateOperation:         http.StatusConflict,
	CodeInactiveEntity:             http.StatusUnprocessableEntity,
	CodeOrganizationContextRequired: http.StatusBadRequest,
}

// ServiceError is the structured error every service returns. It never
// escapes as a bare error from a pure package; it originates in a service
// and the surrounding transaction rolls back.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error so errors.Is/errors.As work through it.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches arbitrary structured context (e.g. allowed state
// transitions, conflicting version id) and returns e for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a ServiceError of the given code, resolving its HTTP status
// from the fixed code->status table.
func New(code Code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatusByCode[code]}
}

// Wrap builds a ServiceError around an underlying cause (typically a
// storage error), preserving it via Unwrap.
func Wrap(code Code, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatusByCode[code], Err: err}
}

func NotFound(entity, id string) *ServiceError {
	return New(CodeEntityNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

func Validation(message string) *ServiceError {
	return New(CodeValidationError, message)
}

func BusinessRule(message string) *ServiceError {
	return New(CodeBusinessRuleViolation, message)
}

func InvalidState(current, message string, allowed []string) *ServiceError {
	return New(CodeInvalidState, message).
		WithDetails("currentState", current).
		WithDetails("allowedNext", allowed)
}

func Duplicate(message string) *ServiceError {
	return New(CodeDuplicateOperation, message)
}

func Inactive(message string) *ServiceError {
	return New(CodeInactiveEntity, message)
}

// OrganizationRequired fails any operation missing tenancy scope.
func OrganizationRequired() *ServiceError {
	return New(CodeOrganizationContextRequired, "organization context is required")
}

// Is reports whether err (or anything it wraps) is a ServiceError of code.
func Is(err error, code Code) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
