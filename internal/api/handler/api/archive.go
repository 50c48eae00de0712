// internal/api/handler/api/archive.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/lookback/internal/api/response"
	"github.com/newthinker/lookback/internal/backtest"
)

// Archive reads archived reports
type Archive interface {
	Archived(ctx context.Context, id string) (*backtest.Report, error)
	ArchivedIDs(ctx context.Context) ([]string, error)
}

// ArchiveHandler serves archived backtest reports.
type ArchiveHandler struct {
	archive Archive
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(archive Archive) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// Get returns one archived report.
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.archive.Archived(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// List returns archived report ids, newest first.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.archive.ArchivedIDs(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"ids":   ids,
		"count": len(ids),
	})
}
