package repository

import (
	"strings"
	"time"
	"unicode"
)

// Timeframe represents bar resolution buckets as the broker bridge accepts
// them.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// TimeframeDuration returns the bar span for tf, or the default's span for
// an unknown token.
func TimeframeDuration(tf Timeframe) time.Duration {
	if d, ok := timeframeDurations[tf]; ok {
		return d
	}
	return timeframeDurations[DefaultTimeframe()]
}

// NormalizeTimeframe converts raw tokens to a supported timeframe. It accepts
// the bridge forms ("1h"), the terminal forms ("H1", "m15") and bare minute
// counts ("60" means one hour), defaulting when nothing matches.
func NormalizeTimeframe(s string) Timeframe {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return DefaultTimeframe()
	}
	if IsValidTimeframe(Timeframe(raw)) {
		return Timeframe(raw)
	}
	// "m15" / "h4" / "d1" -> "15m" / "4h" / "1d"
	if len(raw) >= 2 && (raw[0] == 'm' || raw[0] == 'h' || raw[0] == 'd') && isDigits(raw[1:]) {
		flipped := Timeframe(raw[1:] + raw[:1])
		if IsValidTimeframe(flipped) {
			return flipped
		}
	}
	if isDigits(raw) {
		if raw == "60" {
			return TF1h
		}
		if IsValidTimeframe(Timeframe(raw + "m")) {
			return Timeframe(raw + "m")
		}
	}
	return DefaultTimeframe()
}

// NormalizeSymbol uppercases and strips everything but letters and digits,
// matching how the bridge canonicalizes broker symbols.
func NormalizeSymbol(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
