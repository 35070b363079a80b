package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/habit-tracker/internal/view"
)

// HandleHome renders the landing page.
func HandleHome(googleLogin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := view.LandingPage(googleLogin).Render(r.Context(), w); err != nil {
			slog.Error("render landing page", "error", err)
		}
	}
}
