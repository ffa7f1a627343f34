package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrWalltimeFormat = errors.New("invalid walltime")

// ParseWalltime parses the [[HH:]MM:]SS walltime notation used by
// resources_used.walltime, resources_used.cput and Resource_List.walltime.
// Hours may exceed 24, a plain number is a count of seconds.
func ParseWalltime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrWalltimeFormat
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrWalltimeFormat, s)
	}

	units := []time.Duration{time.Second, time.Minute, time.Hour}
	var ret time.Duration
	for i := range parts {
		part := parts[len(parts)-1-i]
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrWalltimeFormat, s)
		}
		ret += time.Duration(n) * units[i]
	}
	return ret, nil
}

// FormatWalltime is the inverse of ParseWalltime, it always emits HH:MM:SS.
func FormatWalltime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
