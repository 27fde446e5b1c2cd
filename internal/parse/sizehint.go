package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeTokenRx matches explicit size tokens such as "1.2GB" or "800MB".
var sizeTokenRx = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(gb|mb)`)

// Resolution-based size estimates in megabytes, used when the filename
// carries no explicit size token. Best-effort by design: the reconciler
// compares these hints, not real byte counts.
const (
	sizeHint4K     = 8000
	sizeHint1080p  = 2000
	sizeHint720p   = 1000
)

// SizeHintMB estimates a file's size in megabytes from its name: an
// explicit size token wins, then a resolution heuristic, else 0.
func SizeHintMB(fileName string) float64 {
	if m := sizeTokenRx.FindStringSubmatch(fileName); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if strings.EqualFold(m[2], "gb") {
				return value * 1024
			}
			return value
		}
	}

	lower := strings.ToLower(fileName)
	switch {
	case strings.Contains(lower, "2160p") || strings.Contains(lower, "4k"):
		return sizeHint4K
	case strings.Contains(lower, "1080p"):
		return sizeHint1080p
	case strings.Contains(lower, "720p"):
		return sizeHint720p
	}
	return 0
}
