// Package api provides the JSON response envelope shared by every
// endpoint: success responses carry only "data", error responses
// carry only a structured "error" — the two shapes never mix.
package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// SuccessEnvelope represents a successful API response.
type SuccessEnvelope struct {
	Data interface{} `json:"data"`
}

// ErrorEnvelope represents an error API response.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is structured, machine-readable error information.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(SuccessEnvelope{Data: data}); err != nil {
		log.Printf("api: failed to encode success response: %v", err)
	}
}

// Error writes an error JSON response with structured details.
func Error(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	}); err != nil {
		log.Printf("api: failed to encode error response: %v", err)
	}
}

// BadRequest returns a 400 for malformed requests.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}

// InvalidJSON returns a 400 for JSON parsing errors.
func InvalidJSON(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "INVALID_JSON", message, nil)
}

// MissingField returns a 400 for a missing required field.
func MissingField(w http.ResponseWriter, field string) {
	Error(w, http.StatusBadRequest, "MISSING_FIELD",
		"required field is missing: "+field,
		map[string]interface{}{"field": field})
}

// Unauthorized returns a 401. Every authentication-failure reason
// (unknown user, replayed session, invalid proof) renders through
// this single helper with the same generic message, so a client
// cannot distinguish rejection causes from the response alone.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// Conflict returns a 409, used for a duplicate username at registration.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message, nil)
}

// TooManyRequests returns a 429 when a client has exceeded its rate limit.
func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message, nil)
}

// InternalError logs err and returns a generic 500, never leaking the
// underlying error to the client.
func InternalError(w http.ResponseWriter, err error) {
	if err != nil {
		log.Printf("api: internal error: %v", err)
	}
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"an unexpected error occurred, please try again later", nil)
}

// ServiceUnavailable returns a 503, used when the CPU worker pool's
// queue is saturated.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}
