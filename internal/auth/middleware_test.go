package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// echoUserHandler writes the authenticated user ID, or "anonymous".
func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := UserIDFromContext(r.Context()); ok {
			w.Write([]byte(userID))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	handler := RequireAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "user-42" {
		t.Errorf("body = %q, want %q", got, "user-42")
	}
}

func TestRequireAuth_Cookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-42")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	handler := RequireAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "user-42" {
		t.Errorf("body = %q, want %q", got, "user-42")
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	ts := newTestTokenService(t)
	handler := RequireAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-42")
	handler := RequireAuth(ts)(echoUserHandler())

	// A non-Bearer scheme must not fall through to the cookie and must
	// be rejected outright.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestOptionalAuth_Anonymous(t *testing.T) {
	ts := newTestTokenService(t)
	handler := OptionalAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "anonymous" {
		t.Errorf("body = %q, want %q", got, "anonymous")
	}
}

func TestOptionalAuth_ValidToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-42")
	handler := OptionalAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "user-42" {
		t.Errorf("body = %q, want %q", got, "user-42")
	}
}

func TestOptionalAuth_InvalidTokenStaysAnonymous(t *testing.T) {
	ts := newTestTokenService(t)
	handler := OptionalAuth(ts)(echoUserHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "anonymous" {
		t.Errorf("body = %q, want %q", got, "anonymous")
	}
}
