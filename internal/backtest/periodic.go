package backtest

// Period is a calendar bucket for periodic returns
type Period int

const (
	PeriodMonth Period = iota
	PeriodYear
)

func (p Period) layout() string {
	if p == PeriodYear {
		return "2006"
	}
	return "2006-01"
}

// PeriodicReturns computes the percent change between the last portfolio
// value of consecutive calendar periods.
//
// Reference mode reports the first period as 0. PnL values are not an
// investable base until positive, so PnL mode keeps only strictly positive
// period-end values and reports no return for the first of them.
func PeriodicReturns(states []PortfolioState, mode CapitalMode, period Period) []PeriodReturn {
	type obs struct {
		label string
		value float64
	}
	layout := period.layout()
	var observations []obs
	for _, s := range states {
		label := s.Date.Format(layout)
		if n := len(observations); n > 0 && observations[n-1].label == label {
			observations[n-1].value = s.Value
			continue
		}
		observations = append(observations, obs{label: label, value: s.Value})
	}

	if mode == CapitalModePnL {
		positive := observations[:0:0]
		for _, o := range observations {
			if o.value > 0 {
				positive = append(positive, o)
			}
		}
		observations = positive
	}

	out := make([]PeriodReturn, 0, len(observations))
	for i, o := range observations {
		if i == 0 {
			if mode != CapitalModePnL {
				out = append(out, PeriodReturn{Label: o.label})
			}
			continue
		}
		var change float64
		if prev := observations[i-1].value; prev != 0 {
			change = (o.value/prev - 1) * 100
		}
		out = append(out, PeriodReturn{Label: o.label, Value: change})
	}
	return out
}
