package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/service"
	datastar "github.com/starfederation/datastar-go/datastar"
)

// StorageHandler serves the caller's monthly snapshots.
type StorageHandler struct {
	snapshots *service.SnapshotService
	bootstrap *service.Bootstrapper
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(snapshots *service.SnapshotService, bootstrap *service.Bootstrapper) *StorageHandler {
	return &StorageHandler{snapshots: snapshots, bootstrap: bootstrap}
}

// HandleGetMonth returns one month. A month that was never saved comes back
// with a null payload; nothing is created.
// GET /storage/{year}/{month}
func (h *StorageHandler) HandleGetMonth(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	year, month, ok := yearMonthFromPath(w, r)
	if !ok {
		return
	}

	dto := emptySnapshotDTO(year, month)
	snapshot, err := h.snapshots.Get(r.Context(), id.UserID, year, month)
	switch {
	case err == nil:
		dto = toSnapshotDTO(snapshot)
	case errors.Is(err, domain.ErrNotFound):
	default:
		writeServiceError(w, err, "get snapshot")
		return
	}

	if r.Header.Get("Datastar-Request") == "true" {
		sse := datastar.NewSSE(w, r)
		if err := sse.MarshalAndPatchSignals(map[string]any{"storage": dto}); err != nil {
			slog.Error("patch storage signals", "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto)
}

// HandlePut replaces the payload of one month.
// PUT /storage
// Request: {"year": 2024, "month": 3, "payload": {...}}
func (h *StorageHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Year    *int            `json:"year"`
		Month   *int            `json:"month"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Year == nil || req.Month == nil {
		writeServiceError(w, fmt.Errorf("%w: year and month are required", domain.ErrInvalidInput), "save snapshot")
		return
	}

	snapshot, err := h.snapshots.Save(r.Context(), id.UserID, *req.Year, *req.Month, req.Payload)
	if err != nil {
		writeServiceError(w, err, "save snapshot")
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotDTO(snapshot))
}

// HandleInit makes sure a month has usable data, writing the default habits
// if it has none. Clients call it when the user switches month.
// POST /storage/{year}/{month}/init
func (h *StorageHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	year, month, ok := yearMonthFromPath(w, r)
	if !ok {
		return
	}

	snapshot, err := h.bootstrap.Ensure(r.Context(), id.UserID, year, month)
	if err != nil {
		writeServiceError(w, err, "bootstrap snapshot")
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotDTO(snapshot))
}

// HandleGetYear lists the months of a year that have saved data.
// GET /storage/{year}
func (h *StorageHandler) HandleGetYear(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Year must be an integer.")
		return
	}

	months, err := h.snapshots.SavedMonths(r.Context(), id.UserID, year)
	if err != nil {
		writeServiceError(w, err, "list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, YearDTO{Year: year, Months: months})
}

func yearMonthFromPath(w http.ResponseWriter, r *http.Request) (year, month int, ok bool) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Year must be an integer.")
		return 0, 0, false
	}
	month, err = strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Month must be an integer.")
		return 0, 0, false
	}
	return year, month, true
}
