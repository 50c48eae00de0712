package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/lookback/internal/backtest"
	"github.com/newthinker/lookback/internal/core"
)

const reportsPrefix = "backtests"

// Reports persists backtest reports under backtests/YYYY/MM/DD/<id>.json
type Reports struct {
	storage Storage
}

// NewReports wraps a storage backend
func NewReports(storage Storage) *Reports {
	return &Reports{storage: storage}
}

// ReportPath returns the archive path of a report created at the given time
func ReportPath(id string, createdAt time.Time) string {
	return path.Join(reportsPrefix, createdAt.UTC().Format("2006/01/02"), id+".json")
}

// Save writes a report. The report must carry an ID; a missing CreatedAt is
// set to now.
func (r *Reports) Save(ctx context.Context, report *backtest.Report) (string, error) {
	if report == nil || report.ID == "" {
		return "", core.WrapError(core.ErrConfigMissing, errors.New("report id is required"))
	}
	if strings.ContainsAny(report.ID, `/\`) {
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("report id %q contains a path separator", report.ID))
	}
	if report.CreatedAt == nil {
		now := time.Now().UTC()
		report.CreatedAt = &now
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrArchiveFailed, err)
	}

	p := ReportPath(report.ID, *report.CreatedAt)
	if err := r.storage.Write(ctx, p, data); err != nil {
		return "", err
	}
	return p, nil
}

// Load finds a report by id
func (r *Reports) Load(ctx context.Context, id string) (*backtest.Report, error) {
	paths, err := r.storage.List(ctx, reportsPrefix)
	if err != nil {
		return nil, err
	}
	want := id + ".json"
	for _, p := range paths {
		if path.Base(p) != want {
			continue
		}
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		var report backtest.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decode %s: %w", p, err))
		}
		return &report, nil
	}
	return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("report %s", id))
}

// List returns archived report ids, newest date directory first
func (r *Reports) List(ctx context.Context) ([]string, error) {
	paths, err := r.storage.List(ctx, reportsPrefix)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(path.Base(p), ".json"))
	}
	return ids, nil
}
