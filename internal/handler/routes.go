package handler

import (
	"net/http"

	"github.com/msomdec/habit-tracker/internal/metrics"
	"github.com/msomdec/habit-tracker/internal/service"
)

// Options carries the settings routes need besides the services.
type Options struct {
	OAuth        OAuthProvider // nil disables the redirect flow
	FrontendURL  string
	CookieSecure bool
	AuthLimiter  *service.TokenBucket // nil disables rate limiting
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, snapshots *service.SnapshotService, bootstrap *service.Bootstrapper, db Pinger, opts Options) {
	authHandler := NewAuthHandler(auth, opts.OAuth, opts.FrontendURL, opts.CookieSecure)
	storageHandler := NewStorageHandler(snapshots, bootstrap)

	limited := func(h http.HandlerFunc) http.Handler {
		if opts.AuthLimiter == nil {
			return h
		}
		return RateLimit(opts.AuthLimiter, h)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(auth, h)
	}

	mux.HandleFunc("GET /{$}", HandleHome(opts.OAuth != nil))
	mux.HandleFunc("GET /healthz", HandleHealthz(db))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /auth/register", limited(authHandler.HandleRegister))
	mux.Handle("POST /auth/login", limited(authHandler.HandleLogin))
	mux.Handle("POST /auth/google", limited(authHandler.HandleGoogleToken))
	mux.Handle("GET /auth/google/oauth", limited(authHandler.HandleGoogleRedirect))
	mux.Handle("GET /auth/google/callback", limited(authHandler.HandleGoogleCallback))
	mux.Handle("GET /auth/profile", protected(authHandler.HandleProfile))

	mux.Handle("GET /storage/{year}/{month}", protected(storageHandler.HandleGetMonth))
	mux.Handle("POST /storage/{year}/{month}/init", protected(storageHandler.HandleInit))
	mux.Handle("GET /storage/{year}", protected(storageHandler.HandleGetYear))
	mux.Handle("PUT /storage", protected(storageHandler.HandlePut))
}

// Wrap applies the middleware every route shares, outermost first.
func Wrap(h http.Handler, corsOrigins []string) http.Handler {
	return RequestLogger(metrics.InstrumentHandler(CORS(corsOrigins, SecurityHeaders(h))))
}
