package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/handler"
	"github.com/msomdec/habit-tracker/internal/repository/sqlite"
	"github.com/msomdec/habit-tracker/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

type testEnv struct {
	db        *sqlite.DB
	auth      *service.AuthService
	snapshots *service.SnapshotService
	bootstrap *service.Bootstrapper
	srv       *httptest.Server
}

type fakeVerifier struct{}

// Verify accepts tokens of the form "good:<email>".
func (fakeVerifier) Verify(ctx context.Context, idToken string) (*service.ExternalIdentity, error) {
	email, ok := strings.CutPrefix(idToken, "good:")
	if !ok {
		return nil, domain.ErrInvalidExternalToken
	}
	return &service.ExternalIdentity{Subject: "sub", Email: email, Name: "Google User"}, nil
}

type fakeOAuth struct{}

func (fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (fakeOAuth) Exchange(ctx context.Context, code string) (string, error) {
	if code != "good-code" {
		return "", errors.New("invalid_grant")
	}
	return "good:oauth@example.com", nil
}

func newTestEnv(t *testing.T, opts handler.Options) *testEnv {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db}
	env.bootstrap = service.NewBootstrapper(db.Snapshots())
	env.snapshots = service.NewSnapshotService(db.Snapshots())
	tokens := service.NewTokenIssuer(testJWTSecret, time.Hour)
	env.auth = service.NewAuthService(db.Users(), tokens, env.bootstrap, fakeVerifier{}, 4)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, env.auth, env.snapshots, env.bootstrap, db, opts)
	env.srv = httptest.NewServer(handler.Wrap(mux, []string{"https://app.example.com"}))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) register(t *testing.T, email, password string) handler.AuthResponseDTO {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	return decode[handler.AuthResponseDTO](t, resp)
}
