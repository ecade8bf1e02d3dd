package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/rs/zerolog/log"
)

const (
	MsgUnauthenticated    = "Please authenticate"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAlreadyExists      = "User already exists"
	MsgGenerationFailed   = "Failed to generate blueprint"
	MsgInternal           = "Internal server error"
	MsgInvalidBody        = "Invalid request body"
	MsgRateLimited        = "Too many requests, please try again later"
)

// retryAfterSeconds is suggested to clients when the provider throttles us
const retryAfterSeconds = "30"

// ErrorBody is the error envelope returned on every failure
type ErrorBody struct {
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: true, Message: message})
}

// ValidationError sends a 400 with per-field messages
func ValidationError(w http.ResponseWriter, err *domain.ValidationError) {
	JSON(w, http.StatusBadRequest, ErrorBody{
		Error:   true,
		Message: err.Error(),
		Fields:  err.Fields,
	})
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
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, MsgInternal)
}

// FromError maps a service error onto status and a sanitized message.
// Provider detail and internal error text never reach the client.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationError(w, verr)
	case errors.Is(err, domain.ErrValidation):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		Unauthorized(w, MsgUnauthenticated)
	case errors.Is(err, domain.ErrInvalidCredentials):
		Unauthorized(w, MsgInvalidCredentials)
	case errors.Is(err, domain.ErrAlreadyExists):
		Error(w, http.StatusConflict, MsgAlreadyExists)
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "Not found")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful can be written
		log.Debug().Str("path", r.URL.Path).Msg("Request cancelled by client")
	default:
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			if perr.Kind == llm.KindRateLimited || perr.Kind == llm.KindQuotaExceeded {
				w.Header().Set("Retry-After", retryAfterSeconds)
			}
			Error(w, http.StatusBadGateway, MsgGenerationFailed)
			return
		}
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		InternalError(w)
	}
}
