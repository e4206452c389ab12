// Package units parses and formats human-readable sizes and durations.
//
// Size suffixes follow the historical CLI convention: K, M, G, T (and KB,
// MB, GB, TB) are all 1024-based. Bare numbers are bytes.
package units

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// binarySuffixes maps the accepted shorthand suffixes to the IEC form
// understood by humanize. Longest match wins.
var binarySuffixes = []struct{ from, to string }{
	{"KB", "KiB"}, {"MB", "MiB"}, {"GB", "GiB"}, {"TB", "TiB"},
	{"K", "KiB"}, {"M", "MiB"}, {"G", "GiB"}, {"T", "TiB"},
}

// ParseSize converts a size string like "20M", "1G" or "512" to bytes.
func ParseSize(s string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return 0, fmt.Errorf("size string cannot be empty")
	}

	for _, suf := range binarySuffixes {
		if strings.HasSuffix(trimmed, suf.from) {
			trimmed = strings.TrimSuffix(trimmed, suf.from) + suf.to
			break
		}
	}

	n, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// FormatSize renders bytes in 1024-based units, e.g. "1.5 GiB".
func FormatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FormatSeconds renders an ETA in compact units: "42s", "05m10s",
// "2h03m04s", "3d7h".
func FormatSeconds(seconds float64) string {
	s := int64(seconds)
	switch {
	case s < 60:
		return fmt.Sprintf("%02ds", s)
	case s < 3600:
		return fmt.Sprintf("%02dm%02ds", s/60, s%60)
	case s < 86400:
		return fmt.Sprintf("%dh%02dm%02ds", s/3600, (s%3600)/60, s%60)
	default:
		return fmt.Sprintf("%dd%dh", s/86400, (s%86400)/3600)
	}
}
