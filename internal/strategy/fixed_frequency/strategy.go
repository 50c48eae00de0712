package fixed_frequency

import (
	"fmt"
	"time"

	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

// Frequency is the investment schedule
type Frequency string

const (
	Weekly  Frequency = "W"
	Monthly Frequency = "M"
)

// FixedFrequency invests a fixed amount once per week or month
type FixedFrequency struct {
	frequency  Frequency
	amount     float64
	dayOfMonth int // 1-31, used for Monthly
	dayOfWeek  int // 0=Monday .. 6=Sunday, used for Weekly
}

// New creates a monthly plan investing amount on the first trading day
func New() *FixedFrequency {
	return &FixedFrequency{
		frequency:  Monthly,
		amount:     1000,
		dayOfMonth: 1,
		dayOfWeek:  0,
	}
}

func (f *FixedFrequency) Name() string {
	return "fixed_frequency"
}

func (f *FixedFrequency) Kind() strategy.Kind {
	return strategy.KindFixedFrequency
}

func (f *FixedFrequency) Description() string {
	switch f.frequency {
	case Weekly:
		return fmt.Sprintf("Invest %.2f every week (weekday %d)", f.amount, f.dayOfWeek)
	default:
		return fmt.Sprintf("Invest %.2f every month (day %d)", f.amount, f.dayOfMonth)
	}
}

func (f *FixedFrequency) Init(params strategy.Params) error {
	freq := Frequency(params.String("frequency", string(f.frequency)))
	if freq != Weekly && freq != Monthly {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("frequency must be W or M, got %q", freq))
	}

	amount, err := params.Float("amount", f.amount)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("amount must be positive, got %v", amount))
	}

	dom, err := params.Int("day_of_month", f.dayOfMonth)
	if err != nil {
		return err
	}
	if dom < 1 || dom > 31 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("day_of_month must be between 1 and 31, got %d", dom))
	}

	dow, err := params.Int("day_of_week", f.dayOfWeek)
	if err != nil {
		return err
	}
	if dow < 0 || dow > 6 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("day_of_week must be between 0 and 6, got %d", dow))
	}

	f.frequency = freq
	f.amount = amount
	f.dayOfMonth = dom
	f.dayOfWeek = dow
	return nil
}

// GenerateSignals marks one buy per period: the first trading day on or
// after the target day, or the period's last trading day if none qualifies.
// Every point carries the investment amount.
func (f *FixedFrequency) GenerateSignals(prices []core.PricePoint) (core.SignalSeries, error) {
	points := strategy.Uniform(prices, core.ActionHold)
	for i := range points {
		points[i].InvestmentAmount = f.amount
	}

	start := 0
	for start < len(prices) {
		end := start
		key := f.periodKey(prices[start].Date)
		for end+1 < len(prices) && f.periodKey(prices[end+1].Date) == key {
			end++
		}

		buy := end
		for i := start; i <= end; i++ {
			if f.onOrAfterTarget(prices[i].Date) {
				buy = i
				break
			}
		}
		points[buy].Action = core.ActionBuy

		start = end + 1
	}

	return core.SignalSeries{Points: points, Periodic: true}, nil
}

func (f *FixedFrequency) periodKey(t time.Time) string {
	if f.frequency == Weekly {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return t.Format("2006-01")
}

func (f *FixedFrequency) onOrAfterTarget(t time.Time) bool {
	if f.frequency == Weekly {
		return mondayIndex(t) >= f.dayOfWeek
	}
	return t.Day() >= f.dayOfMonth
}

// mondayIndex maps time.Weekday to 0=Monday .. 6=Sunday
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
