package models

import (
	"strconv"
	"strings"
	"time"
)

// DefaultPeriod is used when a monitor's period is missing or invalid.
const DefaultPeriod = time.Second

// ParsePeriod converts a legacy period string into milliseconds. The input
// is whitespace-separated "<integer><unit>" tokens with units s, m, h and d;
// token values are summed, so "1m 30s" is 90000. Tokens with an unknown unit
// or a malformed number contribute nothing.
func ParsePeriod(s string) int64 {
	var total int64
	for _, token := range strings.Fields(s) {
		if len(token) < 2 {
			continue
		}
		n, err := strconv.ParseInt(token[:len(token)-1], 10, 64)
		if err != nil {
			continue
		}
		switch token[len(token)-1] {
		case 's':
			total += n * 1000
		case 'm':
			total += n * 60 * 1000
		case 'h':
			total += n * 60 * 60 * 1000
		case 'd':
			total += n * 24 * 60 * 60 * 1000
		}
	}
	return total
}

// EffectivePeriod returns the period as a duration, substituting
// DefaultPeriod when the parsed value is not positive. The boolean reports
// whether the default was applied.
func EffectivePeriod(s string) (time.Duration, bool) {
	ms := ParsePeriod(s)
	if ms <= 0 {
		return DefaultPeriod, true
	}
	return time.Duration(ms) * time.Millisecond, false
}
