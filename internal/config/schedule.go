package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrISOFormat = errors.New("invalid ISO8601 duration")

// Schedule is either a cron expression or a fixed interval
type Schedule struct {
	Cron  string
	Every time.Duration
}

func (s Schedule) String() string {
	if s.Cron != "" {
		return s.Cron
	}
	return s.Every.String()
}

// ParseSchedule accepts an ISO-8601 duration (PT30S), a 5 field cron
// expression or a cron macro (@hourly, @every 5m).
func ParseSchedule(expr string) (Schedule, error) {
	e := strings.TrimSpace(expr)
	if strings.HasPrefix(e, "P") {
		d, err := ParseISODuration(e)
		if err != nil {
			return Schedule{}, err
		}
		if d <= 0 {
			return Schedule{}, fmt.Errorf("%w: %s is not positive", ErrISOFormat, e)
		}
		return Schedule{Every: d}, nil
	}
	if _, err := ParseCron(e); err != nil {
		return Schedule{}, fmt.Errorf("cron expression %q: %w", e, err)
	}
	return Schedule{Cron: e}, nil
}

// ParseCron parses a cron expression with 5 fields or a macro and returns
// the interval between its next two activations.
func ParseCron(expr string) (time.Duration, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, fmt.Errorf("empty cron expression")
	}

	var schedule cron.Schedule
	var err error
	if strings.HasPrefix(e, "@") {
		schedule, err = cron.ParseStandard(e)
	} else {
		parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		schedule, err = parser5.Parse(e)
	}
	if err != nil {
		return 0, err
	}
	next1 := schedule.Next(time.Now())
	next2 := schedule.Next(next1)
	return next2.Sub(next1), nil
}

var isoDurationRx = regexp.MustCompile(`^P((?P<day>\d+)D)?(T?(?:(?P<hour>[+-]?\d+)H)?(?:(?P<minute>[+-]?\d+)M)?(?:(?P<second>[+-]?\d+(?:[.,]\d+)?)S)?)?$`)

// ParseISODuration parses the day and time part of ISO-8601 durations,
// e.g. P1DT12H or PT0.5S. Months and years are not supported.
func ParseISODuration(dur string) (time.Duration, error) {
	if dur == "" || dur == "P" || dur == "PT" || !isoDurationRx.MatchString(dur) {
		return 0, ErrISOFormat
	}
	match := isoDurationRx.FindStringSubmatch(dur)

	// without T the M means month
	hasT := strings.Contains(dur, "T")
	hasHMS := false

	var ret time.Duration
	for i, name := range isoDurationRx.SubexpNames() {
		part := match[i]
		if i == 0 || name == "" || part == "" {
			continue
		}

		num, frac, err := splitNumber(part)
		if err != nil {
			return 0, err
		}
		var unit time.Duration
		switch name {
		case "day":
			unit = 24 * time.Hour
		case "hour":
			hasHMS = true
			unit = time.Hour
		case "minute":
			hasHMS = true
			if !hasT {
				return 0, ErrISOFormat
			}
			unit = time.Minute
		case "second":
			hasHMS = true
			unit = time.Second
		}
		ret += time.Duration(num) * unit
		if num >= 0 {
			ret += time.Duration(frac * float64(unit))
		} else {
			ret -= time.Duration(frac * float64(unit))
		}
	}

	// P2DT
	if hasT && !hasHMS {
		return 0, ErrISOFormat
	}
	return ret, nil
}

func splitNumber(s string) (num int, frac float64, err error) {
	s = strings.Replace(s, ",", ".", 1)
	a, b, ok := strings.Cut(s, ".")
	if ok {
		if len(b) > 9 {
			return 0, 0, ErrISOFormat
		}
		var f int
		f, err = strconv.Atoi(b)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing fraction: %w", err)
		}
		if f != 0 {
			frac = float64(f) / math.Pow10(len(b))
		}
	}
	num, err = strconv.Atoi(a)
	if err != nil {
		err = fmt.Errorf("parsing number: %w", err)
	}
	return
}
