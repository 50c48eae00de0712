package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/lookback/internal/collector"
	"github.com/newthinker/lookback/internal/core"
)

const (
	historyURL     = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	defaultTimeout = 10 * time.Second
)

// Eastmoney fetches back-adjusted daily closes for China A-shares and ETFs
type Eastmoney struct {
	client     *http.Client
	config     collector.Config
	historyURL string
}

// New creates a new Eastmoney collector
func New() *Eastmoney {
	return &Eastmoney{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		historyURL: historyURL,
	}
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

func (e *Eastmoney) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketCNA}
}

func (e *Eastmoney) Init(cfg collector.Config) error {
	e.config = cfg
	if cfg.Timeout > 0 {
		e.client.Timeout = cfg.Timeout
	}
	return nil
}

// secid converts 600519.SH to 1.600519 for the Eastmoney API.
// Shanghai = 1, Shenzhen = 0
func (e *Eastmoney) secid(symbol string) (string, error) {
	code, exchange, ok := strings.Cut(symbol, ".")
	if !ok {
		return "", fmt.Errorf("symbol %q has no exchange suffix", symbol)
	}
	switch exchange {
	case "SH":
		return "1." + code, nil
	case "SZ":
		return "0." + code, nil
	}
	return "", fmt.Errorf("unsupported exchange %q", exchange)
}

// FetchHistory fetches daily closes
func (e *Eastmoney) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error) {
	secid, err := e.secid(symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}

	// fqt=2 is back-adjusted (hfq), klt=101 is daily
	url := fmt.Sprintf("%s?secid=%s&klt=101&fqt=2&beg=%s&end=%s&fields1=f1,f2,f3&fields2=f51,f53",
		e.historyURL, secid,
		start.Format("20060102"),
		end.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Data == nil || len(result.Data.Klines) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no history for symbol: %s", symbol))
	}

	points := make([]core.PricePoint, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		p, ok := parseKline(line)
		if !ok {
			continue
		}
		points = append(points, p)
	}

	points = collector.Tidy(points, start, end)
	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no usable history for symbol: %s", symbol))
	}
	return &core.PriceSeries{
		Symbol: symbol,
		Name:   result.Data.Name,
		Points: points,
	}, nil
}

// parseKline reads "2024-01-02,1685.01"
func parseKline(line string) (core.PricePoint, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return core.PricePoint{}, false
	}
	t, err := time.Parse(core.DateLayout, fields[0])
	if err != nil {
		return core.PricePoint{}, false
	}
	closePrice, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.PricePoint{}, false
	}
	return core.PricePoint{Date: t, Close: closePrice}, true
}

// Response types
type historyResponse struct {
	Data *historyData `json:"data"`
}

type historyData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}
