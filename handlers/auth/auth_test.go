package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dispatch-gateway/config"
	"dispatch-gateway/core"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func TestTokens_IssueAndValidate(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.Issue(&core.User{Subject: "github:1", Login: "alice", Name: "Alice", Role: core.RoleStaff})
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	actor, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if actor.ID != "github:1" || actor.Role != core.RoleStaff || actor.Login != "alice" {
		t.Errorf("Actor mismatch: %+v", actor)
	}
}

func TestTokens_DefaultRoleIsCustomer(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	token, _ := tokens.Issue(&core.User{Subject: "42"})

	actor, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if actor.Role != core.RoleCustomer {
		t.Errorf("Role mismatch: got %q, want %q", actor.Role, core.RoleCustomer)
	}
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issued }
	token, _ := tokens.Issue(&core.User{Subject: "42"})

	tokens.now = time.Now
	if _, err := tokens.Validate(token); err == nil {
		t.Error("Validate() accepted an expired token")
	}
}

func TestTokens_Rejects(t *testing.T) {
	good := NewTokens("secret", time.Hour)
	other := NewTokens("other-secret", time.Hour)
	foreign, _ := other.Issue(&core.User{Subject: "42"})

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
		Role:             core.RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	badRole, _ := good.Issue(&core.User{Subject: "42", Role: core.Role("superuser")})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"alg none", unsigned},
		{"unknown role", badRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := good.Validate(tt.token); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestTokens_NoSecret(t *testing.T) {
	tokens := NewTokens("", time.Hour)
	if _, err := tokens.Issue(&core.User{Subject: "42"}); err == nil {
		t.Error("Issue() without secret should fail")
	}
	if _, err := tokens.Validate("anything"); err == nil {
		t.Error("Validate() without secret should fail")
	}
}

func TestHandleLogin_NotConfigured(t *testing.T) {
	h := NewHandler(context.Background(), config.Auth{JWTSecret: "secret"}, NewTokens("secret", time.Hour))

	for _, path := range []string{"/login", "/callback?code=abc&state=xyz"} {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status code mismatch: got %d, want %d", path, rec.Code, http.StatusInternalServerError)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: content type mismatch: got %q", path, ct)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: failed to decode response: %v", path, err)
		}
		if body["error"] != "Authentication not configured" {
			t.Errorf("%s: error mismatch: %v", path, body)
		}
	}
}

func TestHandleMe(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	h := NewHandler(context.Background(), config.Auth{JWTSecret: "secret"}, tokens)
	token, _ := tokens.Issue(&core.User{Subject: "7", Login: "bob"})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	var actor core.Actor
	if err := json.NewDecoder(rec.Body).Decode(&actor); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if actor.ID != "7" || actor.Login != "bob" {
		t.Errorf("Actor mismatch: %+v", actor)
	}

	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Missing token: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func newGitHubStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":99,"login":"Dispatcher","name":"Dana"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleCallback_GitHub(t *testing.T) {
	srv := newGitHubStub(t)
	tokens := NewTokens("secret", time.Hour)
	h := NewHandler(context.Background(), config.Auth{JWTSecret: "secret", StaffLogins: []string{"dispatcher"}}, tokens)
	h.provider = "github"
	h.githubAPIURL = srv.URL + "/user"
	h.oauthConfig = &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
	}

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid redirect: %v", err)
	}
	actor, err := tokens.Validate(location.Query().Get("token"))
	if err != nil {
		t.Fatalf("redirect token invalid: %v", err)
	}
	if actor.ID != "github:99" || actor.Role != core.RoleStaff {
		t.Errorf("Actor mismatch: %+v", actor)
	}
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	h := NewHandler(context.Background(), config.Auth{JWTSecret: "secret"}, NewTokens("secret", time.Hour))
	h.provider = "github"
	h.oauthConfig = &oauth2.Config{ClientID: "id"}

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if loc := rec.Header().Get("Location"); strings.Contains(loc, "token=") {
		t.Errorf("State mismatch must not mint a token, redirected to %q", loc)
	}
}

func TestHandleLogin_SetsState(t *testing.T) {
	h := NewHandler(context.Background(), config.Auth{
		JWTSecret:          "secret",
		GitHubClientID:     "id",
		GitHubClientSecret: "secret",
	}, NewTokens("secret", time.Hour))

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != stateCookie {
		t.Fatalf("state cookie missing: %v", cookies)
	}
	if !strings.Contains(rec.Header().Get("Location"), "state="+cookies[0].Value) {
		t.Errorf("redirect does not carry the state: %q", rec.Header().Get("Location"))
	}
}
