package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"vendhub/internal/types"
)

// Authenticator resolves a raw API key presented by a client into an Actor.
// Implementations own the credential lookup and secret verification.
type Authenticator interface {
	ResolveKey(ctx context.Context, rawKey string) (*types.Actor, error)
}

// authPublicPaths lists URL paths that are exempt from authentication.
// Requests to these paths bypass the AuthMiddleware entirely.
var authPublicPaths = map[string]bool{
	"/health": true,
}

// AuthMiddleware wraps handlers requiring authentication.
//
//  1. Extracts the API key from the Authorization header (Bearer scheme)
//     or, failing that, the X-API-Key header.
//  2. Calls Authenticator.ResolveKey to resolve the key to an Actor.
//  3. Injects the Actor into the request context via types.WithActor.
//  4. Returns 401 Unauthorized on failure with distinct error codes:
//     - auth_api_key_missing: no key presented.
//     - auth_api_key_invalid: key is malformed, unknown, or fails verification.
//     - auth_api_key_revoked: key exists but has been revoked.
//
// If the Authenticator field on Server is nil (e.g., during tests that don't
// inject one), the middleware passes through without authentication.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If no authenticator is configured, pass through.
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Skip authentication for public paths.
		if authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		rawKey := extractAPIKey(r)
		if rawKey == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthKeyMissing, "API key is required")
			return
		}

		actor, err := s.Authenticator.ResolveKey(r.Context(), rawKey)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}

		if actor == nil {
			s.writeAuthError(w, r, types.ErrCodeAuthKeyInvalid, "Invalid API key")
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey pulls the raw API key from the request. The Authorization
// header with a Bearer scheme takes precedence over X-API-Key.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		const prefix = "Bearer "
		if len(authHeader) >= len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
			return strings.TrimSpace(authHeader[len(prefix):])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// handleAuthError inspects the error from Authenticator.ResolveKey and
// writes the appropriate 401 response with the correct error code.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthKeyRevoked:
			s.Logger.Warn("authentication failed: key revoked",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthKeyRevoked, "API key has been revoked")
			return
		case types.ErrCodeAuthKeyInvalid:
			s.Logger.Warn("authentication failed: key invalid",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthKeyInvalid, "Invalid API key")
			return
		}
	}

	// Generic error: log it but don't leak internal details.
	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.writeAuthError(w, r, types.ErrCodeAuthKeyInvalid, "Authentication failed")
}

// writeAuthError writes a 401 Unauthorized JSON response with the given error code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}

// RequireAdmin returns middleware that restricts a route to admin actors.
// System actors pass as well; they act on behalf of internal jobs.
//
// If the Actor is not present in context (unauthenticated), returns 401.
// If the Actor's role is insufficient, returns 403 Forbidden.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok {
			s.writeAuthError(w, r, types.ErrCodeAuthKeyMissing, "Authentication required")
			return
		}

		if actor.Role != types.RoleAdmin && actor.Role != types.RoleSystem {
			resp := APIErrorResponse{
				Error: ErrorDetail{
					Code:      string(types.ErrCodePermissionRole),
					Message:   "Insufficient role for this operation",
					RequestID: types.GetRequestID(r.Context()),
				},
			}
			JSON(w, r, http.StatusForbidden, resp)
			return
		}

		next.ServeHTTP(w, r)
	})
}
