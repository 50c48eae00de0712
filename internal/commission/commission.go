package commission

import (
	"fmt"
	"math"

	"github.com/newthinker/lookback/internal/core"
)

// Type identifies a fee schedule
type Type string

const (
	TypeNone       Type = "none"
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Defaults applied by Input.Resolve when a parameter is not given
const (
	DefaultRate   = 0.0003
	DefaultMinFee = 5.0
	DefaultFee    = 5.0
)

// Schedule describes how a trade's notional maps to a fee.
// Rate is a fraction (0.0003 = 3 basis points).
type Schedule struct {
	Type   Type    `json:"type" mapstructure:"type"`
	Rate   float64 `json:"rate,omitempty" mapstructure:"rate"`
	MinFee float64 `json:"min_fee,omitempty" mapstructure:"min_fee"`
	Fee    float64 `json:"fee,omitempty" mapstructure:"fee"`
}

// None is the zero-fee schedule
func None() Schedule {
	return Schedule{Type: TypeNone}
}

// Percentage returns a rate-with-floor schedule
func Percentage(rate, minFee float64) Schedule {
	return Schedule{Type: TypePercentage, Rate: rate, MinFee: minFee}
}

// Fixed returns a flat-fee schedule
func Fixed(fee float64) Schedule {
	return Schedule{Type: TypeFixed, Fee: fee}
}

// Input is a schedule as supplied by a caller. A nil parameter was not given
// and takes its type's default; an explicit 0 is kept.
type Input struct {
	Type   Type     `json:"type" mapstructure:"type"`
	Rate   *float64 `json:"rate,omitempty" mapstructure:"rate"`
	MinFee *float64 `json:"min_fee,omitempty" mapstructure:"min_fee"`
	Fee    *float64 `json:"fee,omitempty" mapstructure:"fee"`
}

// Resolve fills the parameters the caller left out. An empty type stays
// empty so the caller can fall back to another schedule.
func (in Input) Resolve() Schedule {
	s := Schedule{
		Type:   in.Type,
		Rate:   valueOr(in.Rate, 0),
		MinFee: valueOr(in.MinFee, 0),
		Fee:    valueOr(in.Fee, 0),
	}
	switch s.Type {
	case TypePercentage:
		s.Rate = valueOr(in.Rate, DefaultRate)
		s.MinFee = valueOr(in.MinFee, DefaultMinFee)
	case TypeFixed:
		s.Fee = valueOr(in.Fee, DefaultFee)
	}
	return s
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Validate rejects unknown types and negative parameters
func (s Schedule) Validate() error {
	switch s.Type {
	case "", TypeNone, TypePercentage, TypeFixed:
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown commission type %q", s.Type))
	}
	if s.Rate < 0 || s.MinFee < 0 || s.Fee < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission parameters cannot be negative"))
	}
	if math.IsNaN(s.Rate) || math.IsNaN(s.MinFee) || math.IsNaN(s.Fee) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission parameters must be numbers"))
	}
	return nil
}

// Calculate returns the fee charged on a trade of the given notional.
// The result is never negative; callers compare it against the notional
// to decide whether a trade is worth placing.
func (s Schedule) Calculate(notional float64) float64 {
	if notional < 0 {
		notional = 0
	}
	switch s.Type {
	case TypePercentage:
		return math.Max(notional*s.Rate, s.MinFee)
	case TypeFixed:
		return s.Fee
	default:
		return 0
	}
}
