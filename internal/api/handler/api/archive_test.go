// internal/api/handler/api/archive_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/lookback/internal/api/response"
	"github.com/newthinker/lookback/internal/backtest"
	"github.com/newthinker/lookback/internal/core"
)

type fakeArchive struct {
	reports map[string]*backtest.Report
	err     error
}

func (f *fakeArchive) Archived(_ context.Context, id string) (*backtest.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, errors.New(id))
	}
	return r, nil
}

func (f *fakeArchive) ArchivedIDs(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := []string{}
	for id := range f.reports {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestArchiveHandler_Get(t *testing.T) {
	archive := &fakeArchive{reports: map[string]*backtest.Report{
		"abc": {ID: "abc", Symbol: "AAPL"},
	}}
	handler := NewArchiveHandler(archive)

	tests := []struct {
		id   string
		want int
	}{
		{"abc", http.StatusOK},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/v1/archive/"+tt.id, nil)
		req.SetPathValue("id", tt.id)
		w := httptest.NewRecorder()
		handler.Get(w, req)

		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.id, tt.want, w.Code)
		}
	}
}

func TestArchiveHandler_GetBackendFailure(t *testing.T) {
	handler := NewArchiveHandler(&fakeArchive{err: core.WrapError(core.ErrArchiveFailed, errors.New("s3 down"))})

	req := httptest.NewRequest("GET", "/api/v1/archive/abc", nil)
	req.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	handler.Get(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestArchiveHandler_List(t *testing.T) {
	handler := NewArchiveHandler(&fakeArchive{reports: map[string]*backtest.Report{"a": {}, "b": {}}})

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/archive", nil))

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", data["count"])
	}
}
