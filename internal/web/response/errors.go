// Package response writes JSON bodies and error envelopes for the API.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/siteworks/recruitops/internal/crm"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse is the body of a 422 reply
type ValidationErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Fields  map[string][]string `json:"fields"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// OK writes v with 200
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Created writes v with 201
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, v)
}

// NoContent writes an empty 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RenderError renders err with statusCode. Validation errors always render
// as 422 with per-field messages.
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	var ve *crm.ValidationErrors
	if errors.As(err, &ve) {
		RenderValidationError(w, ve)
		return
	}
	var he *HTTPError
	if errors.As(err, &he) {
		he.Render(w)
		return
	}
	JSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
	})
}

// RenderValidationError renders field errors as 422
func RenderValidationError(w http.ResponseWriter, ve *crm.ValidationErrors) {
	JSON(w, http.StatusUnprocessableEntity, &ValidationErrorResponse{
		Error:   "validation_failed",
		Message: "The request contains invalid data",
		Code:    "validation_error",
		Fields:  ve.Fields,
	})
}

// RenderBadRequest renders a 400
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, errors.New(message))
}

// RenderUnauthorized renders a 401
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RenderError(w, http.StatusUnauthorized, errors.New(message))
}

// RenderForbidden renders a 403
func RenderForbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Access denied"
	}
	RenderError(w, http.StatusForbidden, errors.New(message))
}

// RenderNotFound renders a 404
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RenderError(w, http.StatusNotFound, errors.New(message))
}

// RenderConflict renders a 409
func RenderConflict(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusConflict, errors.New(message))
}

// RenderTooManyRequests renders a 429 with Retry-After in seconds
func RenderTooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	RenderError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
}

// RenderInternalError renders a 500 without leaking err to the client
func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, http.StatusInternalServerError, errors.New("Internal server error"))
}

// RenderServiceUnavailable renders a 503
func RenderServiceUnavailable(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RenderError(w, http.StatusServiceUnavailable, errors.New(message))
}

func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusBadGateway:
		return "bad_gateway"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}

// HTTPError is an error that knows its status code
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    map[string]any
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates an HTTPError
func NewHTTPError(statusCode int, format string, args ...any) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
		Code:       errorCodeFromStatus(statusCode),
	}
}

// WithCode overrides the error code
func (e *HTTPError) WithCode(code string) *HTTPError {
	e.Code = code
	return e
}

// WithDetails attaches details
func (e *HTTPError) WithDetails(details map[string]any) *HTTPError {
	e.Details = details
	return e
}

// Render writes the error
func (e *HTTPError) Render(w http.ResponseWriter) {
	JSON(w, e.StatusCode, &ErrorResponse{
		Error:   "error",
		Message: e.Message,
		Code:    e.Code,
		Details: e.Details,
	})
}
