package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/lookback/internal/app"
	"github.com/newthinker/lookback/internal/backtest"
	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

// backtestOptions holds the backtest command's flags
type backtestOptions struct {
	symbol         string
	from           string
	to             string
	capital        float64
	capitalMode    string
	stake          float64
	commissionType string
	rate           float64
	minFee         float64
	fee            float64
	rateSet        bool
	minFeeSet      bool
	feeSet         bool
	takeProfit     float64
	stopLoss       float64
	benchmark      string
	params         []string
	csvPath        string
	jsonOut        bool
}

var btOpts backtestOptions

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long: `Run a strategy against historical data and show performance statistics.

Without --from/--to the configured default window ending today is used.
Without --capital the configured initial capital is used; --capital 0 runs
in PnL mode, where the curve shows profit and loss from zero.`,
	Example: `  lookback backtest sma_cross --symbol 600519 --from 2023-01-01 --to 2024-01-01 --param period=20
  lookback backtest fixed_frequency --symbol AAPL --capital 0 --param amount=1000 --param frequency=M`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&btOpts.symbol, "symbol", "", "Symbol to backtest (required)")
	f.StringVar(&btOpts.from, "from", "", "Start date YYYY-MM-DD")
	f.StringVar(&btOpts.to, "to", "", "End date YYYY-MM-DD")
	f.Float64Var(&btOpts.capital, "capital", 0, "Reference capital; 0 selects PnL mode")
	f.StringVar(&btOpts.capitalMode, "capital-mode", "", "Capital mode: reference or pnl")
	f.Float64Var(&btOpts.stake, "stake", 0, "PnL-mode entry notional")
	f.StringVar(&btOpts.commissionType, "commission-type", "", "Commission: none, percentage or fixed")
	f.Float64Var(&btOpts.rate, "rate", 0, "Percentage commission rate as a fraction")
	f.Float64Var(&btOpts.minFee, "min-fee", 0, "Percentage commission minimum fee")
	f.Float64Var(&btOpts.fee, "fee", 0, "Fixed commission per trade")
	f.Float64Var(&btOpts.takeProfit, "take-profit", 0, "Take-profit threshold as a fraction of cost basis")
	f.Float64Var(&btOpts.stopLoss, "stop-loss", 0, "Stop-loss threshold as a fraction of cost basis")
	f.StringVar(&btOpts.benchmark, "benchmark", "", "Market benchmark symbol, e.g. sh000300 or ^GSPC")
	f.StringArrayVar(&btOpts.params, "param", nil, "Strategy parameter key=value (repeatable)")
	f.StringVar(&btOpts.csvPath, "csv", "", "Write the day-by-day portfolio curve to this CSV file")
	f.BoolVar(&btOpts.jsonOut, "json", false, "Print the full report as JSON")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	var capital *float64
	if cmd.Flags().Changed("capital") {
		capital = &btOpts.capital
	}
	btOpts.rateSet = cmd.Flags().Changed("rate")
	btOpts.minFeeSet = cmd.Flags().Changed("min-fee")
	btOpts.feeSet = cmd.Flags().Changed("fee")
	req, err := btOpts.request(args[0])
	if err != nil {
		return err
	}
	req = svc.WithDefaults(req, capital)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	result, report, err := svc.RunDetailed(ctx, req)
	if err != nil {
		return err
	}

	if btOpts.csvPath != "" {
		if err := writeCSV(btOpts.csvPath, result); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if btOpts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSummary(out, report)
	return nil
}

// request converts the flags into a backtest request
func (o backtestOptions) request(strategyName string) (backtest.Request, error) {
	mode, err := backtest.ParseCapitalMode(o.capitalMode)
	if err != nil {
		return backtest.Request{}, err
	}
	params, err := parseParams(o.params)
	if err != nil {
		return backtest.Request{}, err
	}

	req := backtest.Request{
		Symbol:          o.symbol,
		Strategy:        strategyName,
		Params:          params,
		CapitalMode:     mode,
		Stake:           o.stake,
		BenchmarkSymbol: o.benchmark,
		TakeProfitPct:   o.takeProfit,
		StopLossPct:     o.stopLoss,
		Commission:      o.commission().Resolve(),
	}

	if o.from != "" || o.to != "" {
		if o.from == "" || o.to == "" {
			return backtest.Request{}, core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("--from and --to must be given together"))
		}
		if req.Start, err = time.Parse(core.DateLayout, o.from); err != nil {
			return backtest.Request{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err))
		}
		if req.End, err = time.Parse(core.DateLayout, o.to); err != nil {
			return backtest.Request{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err))
		}
	}
	return req, nil
}

// commission keeps only the fee flags that were given, so an explicit 0
// is not replaced by a default
func (o backtestOptions) commission() commission.Input {
	in := commission.Input{Type: commission.Type(o.commissionType)}
	if o.rateSet {
		in.Rate = &o.rate
	}
	if o.minFeeSet {
		in.MinFee = &o.minFee
	}
	if o.feeSet {
		in.Fee = &o.fee
	}
	return in
}

// parseParams turns key=value pairs into strategy parameters. Values stay
// strings; strategies parse them.
func parseParams(pairs []string) (strategy.Params, error) {
	params := strategy.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("parameter %q is not key=value", pair))
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

func writeCSV(path string, result *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	if err := backtest.WriteCurveCSV(f, result); err != nil {
		f.Close()
		return fmt.Errorf("writing csv: %w", err)
	}
	return f.Close()
}

func printSummary(w io.Writer, r *backtest.Report) {
	fmt.Fprintln(w, "=== lookback Backtest ===")
	fmt.Fprintf(w, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol:   %s (%s)\n", r.Symbol, r.AssetName)
	fmt.Fprintf(w, "Period:   %s to %s\n", r.StartDate, r.EndDate)
	fmt.Fprintf(w, "Mode:     %s\n", r.CapitalMode)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total return:      %8.2f%%\n", r.Metrics.TotalReturn)
	fmt.Fprintf(w, "Annualized return: %8.2f%%\n", r.Metrics.AnnualizedReturn)
	fmt.Fprintf(w, "Max drawdown:      %8.2f%%\n", r.Metrics.MaxDrawdown)
	fmt.Fprintf(w, "Volatility:        %8.2f%%\n", r.Metrics.Volatility)
	fmt.Fprintf(w, "Sharpe ratio:      %8.2f\n", r.Metrics.SharpeRatio)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Trades: %d (won %d, lost %d, win rate %.2f%%)\n",
		r.TradeStats.TotalTrades, r.TradeStats.WinningTrades, r.TradeStats.LosingTrades, r.TradeStats.WinRate)
	if r.ID != "" {
		fmt.Fprintf(w, "Report: %s\n", r.ID)
	}
}
