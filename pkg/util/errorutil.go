package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the ticket lifecycle.
const (
	CodeTicketNotFound    = "TICKET_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAlreadyAccepted   = "ALREADY_ACCEPTED"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodeNotMessageable    = "TICKET_NOT_MESSAGEABLE"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewTicketNotFound(ticketID string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound,
		map[string]any{"ticket_id": ticketID})
}

func NewInvalidTransition(current, event string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("%s is not allowed while ticket is %s", event, current),
		http.StatusConflict,
		map[string]any{"status": current, "event": event})
}

func NewAlreadyAccepted(ticketID string) error {
	return NewDomainError(CodeAlreadyAccepted, "ticket already accepted by another administrator",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

func NewEmptyMessage() error {
	return NewDomainError(CodeEmptyMessage, "message text is empty", http.StatusBadRequest, nil)
}

func NewNotMessageable(status string) error {
	return NewDomainError(CodeNotMessageable,
		"ticket cannot receive messages in its current status",
		http.StatusConflict, map[string]any{"status": status})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
