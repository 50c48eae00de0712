package strategy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/lookback/internal/core"
)

// Params holds user-supplied strategy parameters. Values arrive as float64
// from JSON bodies, as strings from CLI flags and as ints from code.
type Params map[string]any

// Int reads an integer parameter, returning def when the key is absent or null
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalidParam(key, v)
		}
		return int(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, invalidParam(key, v)
		}
		return i, nil
	default:
		return 0, invalidParam(key, v)
	}
}

// Float reads a numeric parameter, returning def when the key is absent or null
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, invalidParam(key, v)
		}
		return f, nil
	default:
		return 0, invalidParam(key, v)
	}
}

// String reads a string parameter, returning def when absent or empty
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return def
	}
	return s
}

// Has reports whether a non-null value is set for key
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil && fmt.Sprint(v) != ""
}

func invalidParam(key string, v any) error {
	return core.WrapError(core.ErrConfigInvalid,
		fmt.Errorf("parameter %q has invalid value %v", key, v))
}
