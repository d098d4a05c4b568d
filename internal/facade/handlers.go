package facade

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/zkid-sh/zkauth/internal/api"
	"github.com/zkid-sh/zkauth/internal/worker"
)

// Handler adapts a Facade onto the three protocol HTTP endpoints.
type Handler struct {
	facade *Facade
	mux    *http.ServeMux
}

// NewHandler returns a Handler serving register/challenge/verify over facade.
func NewHandler(facade *Facade) *Handler {
	h := &Handler{facade: facade, mux: http.NewServeMux()}
	h.RegisterRoutes(h.mux)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// RegisterRoutes registers the three protocol endpoints on mux, for
// callers that want to compose them alongside other routes rather than
// use Handler's own internal mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/challenge", h.Challenge)
	mux.HandleFunc("POST /api/v1/auth/verify", h.Verify)
}

type registerRequest struct {
	Username   string `json:"username"`
	PublicKeyY string `json:"publicKeyY"`
	Salt       string `json:"salt"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.InvalidJSON(w, "request body must be valid JSON")
		return
	}

	result, err := h.facade.Register(r.Context(), req.Username, req.PublicKeyY, req.Salt, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername):
			api.BadRequest(w, "username must match ^[A-Za-z0-9_]{3,32}$")
		case errors.Is(err, ErrInvalidHex):
			api.BadRequest(w, "publicKeyY must be a hexadecimal string")
		case errors.Is(err, ErrInvalidPublicKey):
			api.BadRequest(w, "publicKeyY is out of range for the group")
		case errors.Is(err, ErrUsernameTaken):
			api.Conflict(w, "username already registered")
		default:
			api.InternalError(w, err)
		}
		return
	}

	api.Success(w, http.StatusCreated, map[string]string{"username": result.Username})
}

type challengeRequest struct {
	Username string `json:"username"`
	ClientR  string `json:"clientR"`
}

// Challenge handles POST /api/v1/auth/challenge.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.InvalidJSON(w, "request body must be valid JSON")
		return
	}

	result, err := h.facade.Challenge(r.Context(), req.Username, req.ClientR)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUsername):
			api.BadRequest(w, "username must match ^[A-Za-z0-9_]{3,32}$")
		case errors.Is(err, ErrInvalidHex):
			api.BadRequest(w, "clientR must be a valid group element encoded as hex")
		default:
			api.InternalError(w, err)
		}
		return
	}

	api.Success(w, http.StatusOK, map[string]string{
		"challengeId": result.ChallengeID,
		"c":           result.C.Text(16),
		"p":           result.P.Text(16),
		"q":           result.Q.Text(16),
		"g":           result.G.Text(16),
	})
}

type verifyRequest struct {
	ChallengeID string `json:"challengeId"`
	S           string `json:"s"`
	ClientR     string `json:"clientR"`
	Username    string `json:"username"`
}

// Verify handles POST /api/v1/auth/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.InvalidJSON(w, "request body must be valid JSON")
		return
	}

	if req.ChallengeID == "" {
		api.BadRequest(w, "challengeId is required")
		return
	}

	result, err := h.facade.Verify(r.Context(), req.ChallengeID, req.S, req.ClientR, req.Username, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthFailed):
			api.Unauthorized(w, "authentication failed")
		case errors.Is(err, worker.ErrQueueFull):
			api.ServiceUnavailable(w, "server is under heavy load, please retry")
		default:
			api.InternalError(w, err)
		}
		return
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"token":     result.Token,
		"type":      "Bearer",
		"username":  result.Username,
		"expiresIn": result.ExpiresIn,
	})
}

// clientIP extracts the caller's address for audit logging, preferring
// a proxy-supplied header to the raw connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
