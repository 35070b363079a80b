package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/msomdec/habit-tracker/internal/config"
	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/google"
	"github.com/msomdec/habit-tracker/internal/handler"
	"github.com/msomdec/habit-tracker/internal/repository/postgres"
	"github.com/msomdec/habit-tracker/internal/repository/sqlite"
	"github.com/msomdec/habit-tracker/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	var verifier service.IdentityVerifier
	if cfg.GoogleTokenLogin() {
		v, err := google.NewIDTokenVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			slog.Error("failed to set up google id token verification", "error", err)
			os.Exit(1)
		}
		verifier = v
	}

	opts := handler.Options{
		FrontendURL:  cfg.FrontendURL,
		CookieSecure: cfg.CookieSecure,
		// Bursts of 10 auth calls per IP, refilling one every five seconds.
		AuthLimiter: service.NewTokenBucket(ctx, 0.2, 10),
	}
	if cfg.GoogleRedirectLogin() {
		opts.OAuth = google.NewOAuthFlow(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}

	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	bootstrap := service.NewBootstrapper(db.Snapshots())
	snapshots := service.NewSnapshotService(db.Snapshots())
	authService := service.NewAuthService(db.Users(), tokens, bootstrap, verifier, cfg.BcryptCost)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authService, snapshots, bootstrap, db, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Wrap(mux, splitOrigins(cfg.CORSOrigin)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr,
			"google_token_login", cfg.GoogleTokenLogin(),
			"google_redirect_login", cfg.GoogleRedirectLogin())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func openDatabase(ctx context.Context, cfg *config.Config) (domain.Database, error) {
	if cfg.DatabaseURL != "" {
		slog.Info("using postgres database")
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	slog.Info("using sqlite database", "path", cfg.DatabasePath)
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
