package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// EMA calculates Exponential Moving Average seeded with the first SMA
func EMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

// Align left-pads a warm-up-trimmed indicator with NaN so that index i
// lines up with prices[i]. n is the length of the source price slice.
func Align(values []float64, n int) []float64 {
	out := make([]float64, n)
	pad := n - len(values)
	for i := 0; i < pad && i < n; i++ {
		out[i] = math.NaN()
	}
	for i, v := range values {
		if idx := pad + i; idx >= 0 && idx < n {
			out[idx] = v
		}
	}
	return out
}

// SMASeries returns SMA values aligned to prices, NaN during warm-up
func SMASeries(prices []float64, period int) []float64 {
	return Align(SMA(prices, period), len(prices))
}

// EMASeries returns EMA values aligned to prices, NaN during warm-up
func EMASeries(prices []float64, period int) []float64 {
	return Align(EMA(prices, period), len(prices))
}
