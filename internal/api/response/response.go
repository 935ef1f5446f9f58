package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/rs/zerolog/log"
)

// Response represents a standard API response
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ErrorBody is the error payload for classified conversation failures.
// UUID and Stage let a caller retry or reconcile a PartialFailure.
type ErrorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	UUID    string           `json:"uuid,omitempty"`
	Stage   string           `json:"stage,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message any) {
	write(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// Failure maps err to a status code by its kind. Unclassified errors are
// logged and reported as 500 without detail.
func Failure(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		InternalError(w, "internal error")
		return
	}

	Error(w, StatusFor(derr.Kind), ErrorBody{
		Kind:    derr.Kind,
		Message: derr.Error(),
		UUID:    derr.UUID,
		Stage:   derr.Stage,
	})
}

// StatusFor returns the HTTP status of an error kind
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindConcurrencyConflict:
		return http.StatusConflict
	case domain.KindReferential:
		return http.StatusUnprocessableEntity
	case domain.KindPartialFailure:
		return http.StatusBadGateway
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message any) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(w http.ResponseWriter, message any) {
	Error(w, http.StatusForbidden, message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message any) {
	Error(w, http.StatusNotFound, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message any) {
	Error(w, http.StatusInternalServerError, message)
}
