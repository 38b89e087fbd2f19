// Package http exposes the transaction, report and currency operations as a
// JSON API.
//
// This file holds the fluent builder used for every response and the single
// place where domain errors are mapped onto status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"moneymate/internal/core"
	"moneymate/internal/currency"
	"moneymate/internal/log"
	"moneymate/internal/services"
	"moneymate/internal/storage"
)

// ErrMalformedRequest marks input that could not be decoded at all.
var ErrMalformedRequest = errors.New("malformed request")

type errorBody struct {
	Error string `json:"error"`
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status and no body.
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

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body with status 204 writes nothing.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidType,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrTooLong,
	services.ErrInsufficientBalance,
	currency.ErrUnsupportedCurrency,
	currency.ErrEmptyAmount,
	currency.ErrInvalidAmount,
	currency.ErrNegativeAmount,
}

// statusFor maps an error onto the HTTP status it should produce.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// ErrorFrom builds the response for err and logs it through the request
// logger. Internal errors are replaced by a generic message.
func ErrorFrom(ctx context.Context, err error) *JSONResponseBuilder {
	status := statusFor(err)
	events := log.NewStructuredLogger(log.FromContext(ctx))
	fields := log.NewFields()
	fields[log.FieldStatusCode] = status

	switch status {
	case http.StatusInternalServerError, http.StatusGatewayTimeout:
		events.LogError(ctx, "Request failed", err, log.ComponentHTTP, "", log.ErrorTypeInternal, fields)
		if status == http.StatusGatewayTimeout {
			return ErrorResponse(status, "request timed out")
		}
		return InternalServerError()
	case http.StatusNotFound:
		events.LogError(ctx, "Resource not found", err, log.ComponentHTTP, "", log.ErrorTypeNotFound, fields)
		return NotFoundError("transaction not found")
	}

	errorType := log.ErrorTypeValidation
	if errors.Is(err, services.ErrInsufficientBalance) {
		errorType = log.ErrorTypeConflict
	}
	events.LogError(ctx, "Request rejected", err, log.ComponentHTTP, "", errorType, fields)
	return ErrorResponse(status, err.Error())
}
