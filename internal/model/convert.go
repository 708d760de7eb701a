package model

import (
	"strconv"
	"strings"
	"time"
)

// ParseDollars converts a display-formatted dollar string to nano-dollars.
// "$0.00001234" -> 12340, "+$1,234.56" -> 1234560000000, "-$5.00" -> -5000000000
// Returns 0 for empty or invalid input.
func ParseDollars(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	n := int64(f*1e9 + 0.5)
	if neg {
		return -n
	}
	return n
}

// ParsePercent converts a display-formatted percentage to basis points.
// "+30%" -> 3000, "85.0%" -> 8500, "-12.4%" -> -1240
// Returns 0 for empty or invalid input.
func ParsePercent(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	bp := int(f*100 + 0.5)
	if neg {
		return -bp
	}
	return bp
}

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Backend emits datetime.isoformat() without a zone
		t, err = time.Parse("2006-01-02T15:04:05.999999", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}
