package pricecache

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

func sampleSeries(symbol string, closes ...float64) *core.PriceSeries {
	s := &core.PriceSeries{Symbol: symbol, Name: symbol + " name"}
	for i, c := range closes {
		s.Points = append(s.Points, core.PricePoint{
			Date:  time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC),
			Close: c,
		})
	}
	return s
}

func TestKey(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := Key("AAPL", start, end); got != "AAPL|2024-01-01|2024-12-31" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key("AAPL", time.Time{}, end); got != "AAPL||2024-12-31" {
		t.Errorf("Key() with open start = %q", got)
	}
}

func TestMemory_PutGet(t *testing.T) {
	m := NewMemory(10, 0)
	ctx := context.Background()

	if got, err := m.Get(ctx, "missing"); err != nil || got != nil {
		t.Fatalf("Get(missing) = %v, %v", got, err)
	}

	in := sampleSeries("AAPL", 1, 2)
	if err := m.Put(ctx, "k", in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	in.Points[0].Close = 999

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Len() != 2 || got.Points[0].Close != 1 {
		t.Errorf("cached series shares memory with caller: %+v", got.Points)
	}
}

func TestMemory_EvictsOldest(t *testing.T) {
	m := NewMemory(2, 0)
	ctx := context.Background()

	m.Put(ctx, "a", sampleSeries("A", 1))
	m.Put(ctx, "b", sampleSeries("B", 1))
	m.Put(ctx, "a", sampleSeries("A", 2)) // overwrite keeps insertion slot
	m.Put(ctx, "c", sampleSeries("C", 1))

	if got, _ := m.Get(ctx, "a"); got != nil {
		t.Error("expected oldest entry to be evicted")
	}
	if n, _ := m.Len(ctx); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory(10, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Put(ctx, "old", sampleSeries("A", 1))
	now = now.Add(30 * time.Minute)
	m.Put(ctx, "new", sampleSeries("B", 1))
	now = now.Add(45 * time.Minute)

	if got, _ := m.Get(ctx, "old"); got != nil {
		t.Error("expired entry returned")
	}
	if got, _ := m.Get(ctx, "new"); got == nil {
		t.Error("fresh entry missing")
	}

	removed, err := m.Purge(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Purge() = %d, %v, want 1", removed, err)
	}
	if n, _ := m.Len(ctx); n != 1 {
		t.Errorf("Len = %d after purge, want 1", n)
	}
}

func TestNoop(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()
	c.Put(ctx, "k", sampleSeries("A", 1))
	if got, err := c.Get(ctx, "k"); got != nil || err != nil {
		t.Errorf("Noop.Get() = %v, %v", got, err)
	}
}
