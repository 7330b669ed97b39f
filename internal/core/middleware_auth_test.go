package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vendhub/internal/types"
)

type stubAuthenticator struct {
	actor   *types.Actor
	err     error
	lastKey string
}

func (s *stubAuthenticator) ResolveKey(_ context.Context, rawKey string) (*types.Actor, error) {
	s.lastKey = rawKey
	if s.err != nil {
		return nil, s.err
	}
	return s.actor, nil
}

func authTestServer(auth Authenticator) *Server {
	return &Server{Logger: discardLogger(), Authenticator: auth}
}

func actorEcho(captured **types.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := types.GetActor(r.Context()); ok {
			*captured = &actor
		}
		w.WriteHeader(http.StatusOK)
	})
}

func authErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestAuthMiddleware_NilAuthenticatorPassesThrough(t *testing.T) {
	s := &Server{Logger: discardLogger()}
	var actor *types.Actor

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	s.AuthMiddleware(actorEcho(&actor)).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if actor != nil {
		t.Error("expected no actor in context without an authenticator")
	}
}

func TestAuthMiddleware_PublicPathSkipsAuth(t *testing.T) {
	s := authTestServer(&stubAuthenticator{err: types.NewAppError(types.ErrCodeAuthKeyInvalid, "nope", nil)})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("expected health to bypass auth, got %d", w.Code)
	}
}

func TestAuthMiddleware_MissingKey(t *testing.T) {
	s := authTestServer(&stubAuthenticator{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	s.AuthMiddleware(actorEcho(new(*types.Actor))).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if code := authErrorCode(t, w); code != string(types.ErrCodeAuthKeyMissing) {
		t.Errorf("expected auth_api_key_missing, got %s", code)
	}
}

func TestAuthMiddleware_BearerTakesPrecedence(t *testing.T) {
	stub := &stubAuthenticator{actor: &types.Actor{ID: "key_1", Role: types.RoleVendor, VendorID: "vnd_1"}}
	s := authTestServer(stub)
	var actor *types.Actor

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	r.Header.Set("Authorization", "Bearer key_1.topsecret")
	r.Header.Set("X-API-Key", "key_other.shadow")
	s.AuthMiddleware(actorEcho(&actor)).ServeHTTP(w, r)

	if stub.lastKey != "key_1.topsecret" {
		t.Errorf("expected Bearer credential to win, resolver saw %q", stub.lastKey)
	}
	if actor == nil || actor.VendorID != "vnd_1" {
		t.Errorf("expected vendor actor in context, got %+v", actor)
	}
}

func TestAuthMiddleware_NonBearerAuthorizationIsMissing(t *testing.T) {
	s := authTestServer(&stubAuthenticator{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	s.AuthMiddleware(actorEcho(new(*types.Actor))).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if code := authErrorCode(t, w); code != string(types.ErrCodeAuthKeyMissing) {
		t.Errorf("expected auth_api_key_missing, got %s", code)
	}
}

func TestAuthMiddleware_XAPIKeyFallback(t *testing.T) {
	stub := &stubAuthenticator{actor: &types.Actor{ID: "key_2", Role: types.RoleAdmin}}
	s := authTestServer(stub)
	var actor *types.Actor

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	r.Header.Set("X-API-Key", "key_2.secret")
	s.AuthMiddleware(actorEcho(&actor)).ServeHTTP(w, r)

	if stub.lastKey != "key_2.secret" {
		t.Errorf("resolver saw %q", stub.lastKey)
	}
	if actor == nil || actor.Role != types.RoleAdmin {
		t.Errorf("expected admin actor, got %+v", actor)
	}
}

func TestAuthMiddleware_RevokedKey(t *testing.T) {
	s := authTestServer(&stubAuthenticator{
		err: types.NewAppError(types.ErrCodeAuthKeyRevoked, "API key has been revoked", nil),
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	r.Header.Set("X-API-Key", "key_3.secret")
	s.AuthMiddleware(actorEcho(new(*types.Actor))).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if code := authErrorCode(t, w); code != string(types.ErrCodeAuthKeyRevoked) {
		t.Errorf("expected auth_api_key_revoked, got %s", code)
	}
}

func TestAuthMiddleware_UnexpectedErrorIsOpaque(t *testing.T) {
	s := authTestServer(&stubAuthenticator{
		err: types.NewAppError(types.ErrCodeInternalDB, "connection reset", nil),
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	r.Header.Set("X-API-Key", "key_4.secret")
	s.AuthMiddleware(actorEcho(new(*types.Actor))).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if code := authErrorCode(t, w); code != string(types.ErrCodeAuthKeyInvalid) {
		t.Errorf("expected auth_api_key_invalid, got %s", code)
	}
}

func TestRequireAdmin(t *testing.T) {
	s := &Server{Logger: discardLogger()}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name       string
		actor      *types.Actor
		wantStatus int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"vendor", &types.Actor{ID: "key_v", Role: types.RoleVendor, VendorID: "vnd_1"}, http.StatusForbidden},
		{"admin", &types.Actor{ID: "key_a", Role: types.RoleAdmin}, http.StatusOK},
		{"system", &types.Actor{ID: "key_s", Role: types.RoleSystem}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/v1/admin/pricing/AEDC", nil)
			if tc.actor != nil {
				r = r.WithContext(types.WithActor(r.Context(), *tc.actor))
			}

			s.RequireAdmin(inner).ServeHTTP(w, r)

			if w.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}
