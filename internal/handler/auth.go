package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/msomdec/habit-tracker/internal/service"
)

const oauthStateCookie = "oauth_state"

// OAuthProvider is the browser redirect half of external login.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (idToken string, err error)
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	auth         *service.AuthService
	oauth        OAuthProvider
	frontendURL  string
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. oauth may be nil when the
// redirect flow is not configured.
func NewAuthHandler(auth *service.AuthService, oauth OAuthProvider, frontendURL string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		oauth:        oauth,
		frontendURL:  frontendURL,
		cookieSecure: cookieSecure,
	}
}

// HandleRegister processes a JSON registration request.
// POST /auth/register
// Request:  {"email":"...","password":"...","name":"..."}
// Response: 201 {"user": {...}, "access_token": "...", "storage": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string  `json:"email"`
		Password string  `json:"password"`
		Name     *string `json:"name"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	res, err := h.auth.Register(r.Context(), req.Email, req.Password, name)
	if err != nil {
		writeServiceError(w, err, "register user")
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponseDTO(res))
}

// HandleLogin processes a JSON login request.
// POST /auth/login
// Request:  {"email":"...","password":"..."}
// Response: {"user": {...}, "access_token": "...", "storage": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, "login user")
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponseDTO(res))
}

// HandleGoogleToken signs in with an ID token the client obtained itself.
// POST /auth/google
// Request:  {"idToken":"..."}
func (h *AuthHandler) HandleGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	res, err := h.auth.ExternalLogin(r.Context(), req.IDToken)
	if err != nil {
		writeServiceError(w, err, "google token login")
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponseDTO(res))
}

// HandleGoogleRedirect starts the browser flow.
// GET /auth/google/oauth
func (h *AuthHandler) HandleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured.")
		return
	}

	state := rand.Text()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleGoogleCallback finishes the browser flow. With a frontend URL
// configured the token is handed over in the URL fragment, which browsers
// never send to servers; otherwise the sign-in result is returned as JSON.
// GET /auth/google/callback
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured.")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		slog.Info("google sign-in declined", "error", e)
		writeError(w, http.StatusUnauthorized, "Google sign-in was not completed.")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || q.Get("state") == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, "Invalid OAuth state.")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	idToken, err := h.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		slog.Warn("google code exchange", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid identity token")
		return
	}

	res, err := h.auth.ExternalLogin(r.Context(), idToken)
	if err != nil {
		writeServiceError(w, err, "google redirect login")
		return
	}

	if h.frontendURL == "" {
		writeJSON(w, http.StatusOK, toAuthResponseDTO(res))
		return
	}

	base, _, _ := strings.Cut(h.frontendURL, "#")
	fragment := url.Values{"access_token": {res.AccessToken}}.Encode()
	http.Redirect(w, r, base+"#"+fragment, http.StatusFound)
}

// HandleProfile returns the caller as asserted by their token.
// GET /auth/profile
// Response: {"userId": 1, "email": "..."}
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, ProfileDTO{UserID: id.UserID, Email: id.Email})
}
