package collector

import (
	"strings"

	"github.com/newthinker/lookback/internal/core"
)

// NormalizeSymbol maps the accepted spellings of a China A-share code onto
// CODE.SH / CODE.SZ. Bare six-digit codes starting with 5 or 6 are Shanghai,
// those starting with 0, 1 or 3 Shenzhen. An explicit sh/sz prefix wins, so
// sh000300 addresses the Shanghai-listed index rather than a Shenzhen stock.
// Other symbols are upper-cased and passed through.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	for _, prefix := range []string{"SH", "SZ"} {
		if code, ok := strings.CutPrefix(s, prefix); ok && isSixDigits(code) {
			return code + "." + prefix
		}
	}

	code, suffix, hasSuffix := strings.Cut(s, ".")
	if !isSixDigits(code) {
		return s
	}
	if hasSuffix {
		switch suffix {
		case "SH", "SS":
			return code + ".SH"
		case "SZ":
			return code + ".SZ"
		}
		return s
	}

	switch code[0] {
	case '5', '6':
		return code + ".SH"
	case '0', '1', '3':
		return code + ".SZ"
	}
	return s
}

// DetectMarket infers the market of a normalised symbol
func DetectMarket(symbol string) core.Market {
	switch {
	case strings.HasSuffix(symbol, ".SH"), strings.HasSuffix(symbol, ".SZ"):
		return core.MarketCNA
	case strings.HasSuffix(symbol, ".HK"):
		return core.MarketHK
	case strings.HasSuffix(symbol, ".L"), strings.HasSuffix(symbol, ".DE"),
		strings.HasSuffix(symbol, ".PA"), strings.HasSuffix(symbol, ".AS"):
		return core.MarketEU
	}
	return core.MarketUS
}

func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
