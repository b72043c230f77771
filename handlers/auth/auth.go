package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dispatch-gateway/config"
	"dispatch-gateway/core"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const stateCookie = "oauth_state"

// Handler serves the public authentication endpoints. Tokens minted here
// are the credentials every other versioned router requires.
type Handler struct {
	tokens *Tokens
	staff  map[string]struct{}

	provider     string
	oauthConfig  *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	githubAPIURL string
}

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// NewHandler configures OIDC when an issuer is set, otherwise GitHub when
// its credentials are set, otherwise no login provider.
func NewHandler(ctx context.Context, cfg config.Auth, tokens *Tokens) *Handler {
	h := &Handler{
		tokens:       tokens,
		staff:        make(map[string]struct{}, len(cfg.StaffLogins)),
		githubAPIURL: "https://api.github.com/user",
	}
	for _, login := range cfg.StaffLogins {
		h.staff[strings.ToLower(login)] = struct{}{}
	}

	switch {
	case cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "":
		logrus.Info("Initializing OIDC authentication provider.")
		h.initOIDC(ctx, cfg)
	case cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "":
		logrus.Info("Initializing GitHub authentication provider.")
		h.provider = "github"
		h.oauthConfig = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	default:
		logrus.Warn("No authentication provider configured.")
	}

	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	return h
}

func (h *Handler) initOIDC(ctx context.Context, cfg config.Auth) {
	if cfg.OIDCClientSecret == "" {
		logrus.Warn("OIDC credentials are not set. OIDC authentication routes will not work.")
		return
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		logrus.Errorf("Failed to create OIDC provider: %s", err.Error())
		return
	}

	h.provider = "oidc"
	h.oauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	h.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
	logrus.Info("OIDC provider initialized")
}

// Routes mounts the auth endpoints. None of them require a credential up front.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/login", h.HandleLogin)
	r.Get("/callback", h.HandleCallback)
	r.Get("/me", h.HandleMe)
	return r
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauthConfig == nil {
		notConfigured(w, r)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauthConfig == nil {
		notConfigured(w, r)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.FormValue("state") {
		logrus.Warn("OAuth callback with missing or mismatched state")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logrus.Errorf("failed to exchange token: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var user *core.User
	if h.provider == "oidc" {
		user, err = h.oidcUser(r.Context(), token)
	} else {
		user, err = h.githubUser(r.Context(), token)
	}
	if err != nil {
		logrus.WithError(err).Error("failed to resolve user from provider")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user.Role = h.roleFor(user.Login)
	jwtToken, err := h.tokens.Issue(user)
	if err != nil {
		logrus.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	logrus.WithFields(logrus.Fields{"subject": user.Subject, "role": user.Role}).Info("User signed in")
	http.Redirect(w, r, "/?token="+url.QueryEscape(jwtToken), http.StatusTemporaryRedirect)
}

// HandleMe echoes the actor behind the supplied bearer token.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	actor, err := h.tokens.Validate(tokenString)
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "Invalid token"})
		return
	}
	render.JSON(w, r, actor)
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]string{"error": "Authentication not configured"})
}

func (h *Handler) roleFor(login string) core.Role {
	if _, ok := h.staff[strings.ToLower(login)]; ok && login != "" {
		return core.RoleStaff
	}
	return core.RoleCustomer
}

func (h *Handler) githubUser(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	resp, err := h.oauthConfig.Client(ctx, token).Get(h.githubAPIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from github: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read github response body: %w", err)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(body, &githubUser); err != nil {
		return nil, fmt.Errorf("failed to unmarshal github user: %w", err)
	}

	return &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	}, nil
}

func (h *Handler) oidcUser(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims from ID token: %w", err)
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	// If preferred_username is not available, use email
	if user.Login == "" && user.Email != "" {
		user.Login = user.Email
	}
	return user, nil
}
