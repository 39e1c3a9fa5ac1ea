package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
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

func NewValidationError(verr *domain.ValidationError) error {
	details := make(map[string]any, len(verr.Errors))
	for category, messages := range verr.Errors {
		details[category] = messages
	}
	return &DomainError{
		Code:       "VALIDATION_FAILED",
		Message:    "Validation Failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
		Err:        verr,
	}
}

func NewNotFound(code, message string, err error) error {
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError classifies any error returned by a handler.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return NewValidationError(verr).(*DomainError)
	}

	var headerErr *domain.CSVHeaderError
	if errors.As(err, &headerErr) {
		return &DomainError{
			Code:       "INVALID_CSV_HEADERS",
			Message:    headerErr.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"header": headerErr.Header},
			Err:        err,
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidHierarchy):
		return &DomainError{
			Code:       "INVALID_HIERARCHY",
			Message:    detail(err, domain.ErrInvalidHierarchy),
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        err,
		}
	case errors.Is(err, domain.ErrTeamNotFound):
		return NewNotFound("TEAM_NOT_FOUND", detail(err, domain.ErrTeamNotFound), err).(*DomainError)
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return NewNotFound("NOT_FOUND", "snapshot not found", err).(*DomainError)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       statusCode(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
			Err:        err,
		}
	}

	return NewInternalError(err).(*DomainError)
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
