package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/msomdec/habit-tracker/internal/client"
	"github.com/msomdec/habit-tracker/internal/handler"
	"github.com/msomdec/habit-tracker/internal/repository/sqlite"
	"github.com/msomdec/habit-tracker/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bootstrap := service.NewBootstrapper(db.Snapshots())
	tokens := service.NewTokenIssuer("client-test-secret-0123456789abcdef", time.Hour)
	auth := service.NewAuthService(db.Users(), tokens, bootstrap, nil, 4)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, service.NewSnapshotService(db.Snapshots()), bootstrap, db, handler.Options{})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RegisterAndProfile(t *testing.T) {
	c := client.New(newTestServer(t).URL, nil)
	ctx := context.Background()

	res, err := c.Register(ctx, "a@x.com", "pw123", "Ann")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if c.Token() != res.AccessToken || res.AccessToken == "" {
		t.Fatal("expected client to keep the access token")
	}
	if res.User.Name != "Ann" {
		t.Fatalf("expected name Ann, got %q", res.User.Name)
	}

	var payload service.MonthPayload
	if err := json.Unmarshal(res.Storage.Payload, &payload); err != nil {
		t.Fatalf("decode storage: %v", err)
	}
	if len(payload.Habits) != 4 {
		t.Fatalf("expected 4 default habits, got %d", len(payload.Habits))
	}

	p, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.UserID != res.User.ID || p.Email != "a@x.com" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestClient_LoginErrors(t *testing.T) {
	c := client.New(newTestServer(t).URL, nil)
	ctx := context.Background()

	if _, err := c.Register(ctx, "a@x.com", "pw123", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := c.Login(ctx, "a@x.com", "nope")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}

	_, err = c.GoogleLogin(ctx, "tok")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
}

func TestClient_Storage(t *testing.T) {
	c := client.New(newTestServer(t).URL, nil)
	ctx := context.Background()
	if _, err := c.Register(ctx, "a@x.com", "pw123", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	month, err := c.Month(ctx, 2001, 6)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if month.Payload != nil {
		t.Fatalf("expected nil payload for unsaved month, got %s", month.Payload)
	}

	payload := json.RawMessage(`{"habits":[],"data":{}}`)
	saved, err := c.Save(ctx, 2001, 6, payload)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("expected saved id")
	}

	month, err = c.Month(ctx, 2001, 6)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if string(month.Payload) != string(payload) {
		t.Fatalf("expected %s, got %s", payload, month.Payload)
	}

	if _, err := c.InitMonth(ctx, 2001, 7); err != nil {
		t.Fatalf("InitMonth: %v", err)
	}
	months, err := c.SavedMonths(ctx, 2001)
	if err != nil {
		t.Fatalf("SavedMonths: %v", err)
	}
	if !slices.Equal(months, []int{6, 7}) {
		t.Fatalf("expected [6 7], got %v", months)
	}
}

func TestClient_RequiresToken(t *testing.T) {
	c := client.New(newTestServer(t).URL, nil)

	_, err := c.Month(context.Background(), 2024, 0)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}
