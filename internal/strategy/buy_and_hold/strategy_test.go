package buy_and_hold

import (
	"testing"
	"time"

	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
)

func TestBuyAndHold_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*BuyAndHold)(nil)
}

func TestBuyAndHold_GenerateSignals(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	prices := []core.PricePoint{
		{Date: base, Close: 100},
		{Date: base.AddDate(0, 0, 1), Close: 110},
		{Date: base.AddDate(0, 0, 2), Close: 121},
	}

	signals, err := New().GenerateSignals(prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []core.Action{core.ActionBuy, core.ActionHold, core.ActionHold}
	for i, p := range signals.Points {
		if p.Action != want[i] {
			t.Errorf("signal[%d] = %s, want %s", i, p.Action, want[i])
		}
		if !p.Date.Equal(prices[i].Date) {
			t.Errorf("signal[%d] date = %v, want %v", i, p.Date, prices[i].Date)
		}
	}
}

func TestBuyAndHold_Empty(t *testing.T) {
	signals, err := New().GenerateSignals(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals.Points) != 0 {
		t.Errorf("expected no signals, got %d", len(signals.Points))
	}
}
