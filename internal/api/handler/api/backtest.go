// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/lookback/internal/api/job"
	"github.com/newthinker/lookback/internal/api/response"
	"github.com/newthinker/lookback/internal/backtest"
	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

const (
	backtestTimeout = 5 * time.Minute
	jobTypeBacktest = "backtest"
)

// Runner executes backtests
type Runner interface {
	WithDefaults(req backtest.Request, capital *float64) backtest.Request
	Run(ctx context.Context, req backtest.Request) (*backtest.Report, error)
	Strategies() *strategy.Registry
}

// StrategySpec names a strategy and its parameters
type StrategySpec struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// BacktestRequest is the request body for a backtest. Dates are YYYY-MM-DD;
// unless both are given the configured default window is used. A missing
// initialCapital takes the configured default and an explicit 0 runs in PnL
// mode.
type BacktestRequest struct {
	Ticker          string            `json:"ticker"`
	StartDate       string            `json:"startDate,omitempty"`
	EndDate         string            `json:"endDate,omitempty"`
	InitialCapital  *float64          `json:"initialCapital,omitempty"`
	CapitalMode     string            `json:"capitalMode,omitempty"`
	Stake           float64           `json:"stake,omitempty"`
	Strategy        StrategySpec      `json:"strategy"`
	Commission      *commission.Input `json:"commission,omitempty"`
	BenchmarkTicker string            `json:"benchmarkTicker,omitempty"`
	TakeProfit      float64           `json:"takeProfit,omitempty"`
	StopLoss        float64           `json:"stopLoss,omitempty"`
}

// toRequest converts the body into a backtest request with defaults applied
func (b BacktestRequest) toRequest(runner Runner) (backtest.Request, error) {
	if strings.TrimSpace(b.Ticker) == "" || b.Strategy.Name == "" {
		return backtest.Request{}, core.WrapError(core.ErrConfigMissing,
			errors.New("ticker and strategy.name are required"))
	}

	mode, err := backtest.ParseCapitalMode(b.CapitalMode)
	if err != nil {
		return backtest.Request{}, err
	}

	req := backtest.Request{
		Symbol:          strings.TrimSpace(b.Ticker),
		Strategy:        b.Strategy.Name,
		Params:          strategy.Params(b.Strategy.Params),
		CapitalMode:     mode,
		Stake:           b.Stake,
		BenchmarkSymbol: strings.TrimSpace(b.BenchmarkTicker),
		TakeProfitPct:   b.TakeProfit,
		StopLossPct:     b.StopLoss,
	}
	if b.Commission != nil {
		req.Commission = b.Commission.Resolve()
	}

	if b.StartDate != "" && b.EndDate != "" {
		if req.Start, err = parseDate("startDate", b.StartDate); err != nil {
			return backtest.Request{}, err
		}
		if req.End, err = parseDate("endDate", b.EndDate); err != nil {
			return backtest.Request{}, err
		}
	}

	return runner.WithDefaults(req, b.InitialCapital), nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(core.DateLayout, value)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", field, err))
	}
	return t, nil
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	runner   Runner
	logger   *zap.Logger
	onJobs   func(active int)
}

// NewBacktestHandler creates a new backtest handler. onJobs, if set, is
// told the number of unfinished backtest jobs whenever it changes.
func NewBacktestHandler(jobStore *job.Store, runner Runner, logger *zap.Logger, onJobs func(active int)) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore: jobStore,
		runner:   runner,
		logger:   logger,
		onJobs:   onJobs,
	}
}

func decode(r *http.Request) (BacktestRequest, error) {
	var body BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("request body: %w", err))
	}
	return body, nil
}

// Run executes a backtest synchronously and writes the report itself as the
// body. Errors use the standard error envelope.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	req, err := body.toRequest(h.runner)
	if err != nil {
		response.Fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), backtestTimeout)
	defer cancel()

	report, err := h.runner.Run(ctx, req)
	if err != nil {
		h.logFailure(req, err)
		response.Fail(w, err)
		return
	}
	response.Raw(w, http.StatusOK, report)
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	req, err := body.toRequest(h.runner)
	if err != nil {
		response.Fail(w, err)
		return
	}

	// Reject what would fail immediately before queueing a job
	if err := req.Validate(); err != nil {
		response.Fail(w, err)
		return
	}
	if _, err := h.runner.Strategies().New(req.Strategy, req.Params); err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create(jobTypeBacktest)
	h.jobsChanged()

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status

	// Run backtest in background
	go h.runJob(jobID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// runJob executes the backtest and updates job status.
func (h *BacktestHandler) runJob(jobID string, req backtest.Request) {
	defer h.jobsChanged()

	// Mark as running
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	report, err := h.runner.Run(ctx, req)

	if err != nil {
		h.logFailure(req, err)
		coreErr := &core.Error{}
		if !errors.As(err, &coreErr) {
			coreErr = &core.Error{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
		}
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = report
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *BacktestHandler) jobsChanged() {
	if h.onJobs != nil {
		h.onJobs(h.jobStore.Active(jobTypeBacktest))
	}
}

func (h *BacktestHandler) logFailure(req backtest.Request, err error) {
	log := h.logger.Error
	if core.IsCallerError(err) {
		log = h.logger.Info
	}
	log("backtest request failed",
		zap.String("symbol", req.Symbol),
		zap.String("strategy", req.Strategy),
		zap.Error(err),
	)
}
