// Package http provides the JSON API over the schedule services.
//
// This file implements a small builder for JSON responses so every handler
// writes status, headers and body the same way.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"scadenze/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. Encoding happens before the status is written
// so an unencodable body turns into a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

var notFoundErrors = []error{
	core.ErrRuleNotFound,
	core.ErrOverrideNotFound,
	core.ErrOneOffNotFound,
	core.ErrAccountNotFound,
	core.ErrPostingNotFound,
}

var validationErrors = []error{
	core.ErrZeroDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrInvalidKind,
	core.ErrInvalidFrequency,
	core.ErrInvalidInterval,
	core.ErrInvalidAnchor,
	core.ErrInvalidWeekendPolicy,
	core.ErrReversedDateRange,
	core.ErrMissingCategory,
	core.ErrMissingAccount,
	core.ErrInvalidTransfer,
	core.ErrInvalidStatus,
	core.ErrInvalidAccount,
	core.ErrMissingRule,
}

// StatusFor maps a service error to an HTTP status: malformed requests are
// 400, validation failures 422, lookups of unknown ids 404, anything else
// 500.
func StatusFor(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) || errors.Is(err, core.ErrWindowTooLarge) {
		return http.StatusBadRequest
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// ErrorFor builds the response for err. Internal errors do not leak their
// text to the client.
func ErrorFor(err error) *JSONResponseBuilder {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return InternalServerError("internal error")
	}
	return ErrorResponse(status, err.Error())
}
