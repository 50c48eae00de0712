package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/newthinker/lookback/internal/collector"
	"github.com/newthinker/lookback/internal/core"
)

// row is one line of a price file: date,close[,name]
type row struct {
	Date  string  `csv:"date"`
	Close float64 `csv:"close"`
	Name  string  `csv:"name,omitempty"`
}

// CSVFile reads daily closes from <base_dir>/<SYMBOL>.csv
type CSVFile struct {
	config collector.Config
}

// New creates a new CSV file collector
func New() *CSVFile {
	return &CSVFile{}
}

func (c *CSVFile) Name() string {
	return "csv"
}

func (c *CSVFile) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketUS, core.MarketHK, core.MarketEU, core.MarketCNA}
}

func (c *CSVFile) Init(cfg collector.Config) error {
	if cfg.BaseDir == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("csv collector requires base_dir"))
	}
	c.config = cfg
	return nil
}

// path maps a symbol to its file, refusing anything that could escape BaseDir
func (c *CSVFile) path(symbol string) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid symbol %q", symbol))
	}
	return filepath.Join(c.config.BaseDir, symbol+".csv"), nil
}

// FetchHistory loads the file for symbol and keeps rows within [start, end]
func (c *CSVFile) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*core.PriceSeries, error) {
	path, err := c.path(symbol)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no price file for %s", symbol))
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows := []*row{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	name := symbol
	points := make([]core.PricePoint, 0, len(rows))
	for _, r := range rows {
		t, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: bad date %q", path, r.Date))
		}
		if r.Name != "" {
			name = r.Name
		}
		points = append(points, core.PricePoint{Date: t, Close: r.Close})
	}

	points = collector.Tidy(points, start, end)
	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no rows for %s in range", symbol))
	}
	return &core.PriceSeries{Symbol: symbol, Name: name, Points: points}, nil
}
