package builtin

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/lookback/internal/core"
	"github.com/newthinker/lookback/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoversEveryKind(t *testing.T) {
	reg := NewRegistry(nil)

	infos := reg.Describe()
	require.Len(t, infos, len(strategy.Kinds()))

	seen := make(map[strategy.Kind]bool)
	for _, info := range infos {
		seen[info.Kind] = true
		assert.Equal(t, string(info.Kind), info.Name, "built-in names match their kind")
		assert.Equal(t, info.Kind.Periodic(), info.Periodic)
	}
	for _, k := range strategy.Kinds() {
		assert.True(t, seen[k], "kind %s not registered", k)
	}
}

func TestNewRegistry_Generate(t *testing.T) {
	reg := NewRegistry(nil)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]core.PricePoint, 40)
	for i := range prices {
		prices[i] = core.PricePoint{Date: base.AddDate(0, 0, i), Close: 100 + float64(i)}
	}

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			signals, err := reg.Generate(name, nil, prices)
			require.NoError(t, err)
			assert.Len(t, signals.Points, len(prices))
			assert.Equal(t, name == "fixed_frequency", signals.Periodic)
		})
	}
}

func TestNewRegistry_UnknownStrategy(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Generate("momentum", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownStrategy))
}
