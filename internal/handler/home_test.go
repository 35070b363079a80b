package handler_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/msomdec/habit-tracker/internal/handler"
)

func TestHandleHome(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	resp := env.do(t, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Habit Tracker API") {
		t.Fatal("expected landing page heading")
	}
}

func TestHandleHomeNotFound(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	resp := env.do(t, http.MethodGet, "/nonexistent", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
