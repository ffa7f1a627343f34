package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
)

const traceTimeLayout = "01/02/2006 15:04:05"

var (
	traceEventRx  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}(?:\.\d+)?)\s+([SMAL])\s+(.*)$`)
	traceBannerRx = regexp.MustCompile(`(?i)^job:\s*\S+`)
)

// ParseTrace parses tracejob output. Timestamps are interpreted in the
// local time zone.
func ParseTrace(ctx context.Context, text string) ([]model.TraceEvent, error) {
	return ParseTraceIn(ctx, text, time.Local)
}

// ParseTraceIn is ParseTrace with an explicit location of timestamps
func ParseTraceIn(ctx context.Context, text string, loc *time.Location) ([]model.TraceEvent, error) {
	events := []model.TraceEvent{}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || traceBannerRx.MatchString(trimmed) {
			continue
		}

		m := traceEventRx.FindStringSubmatch(line)
		if m == nil {
			if len(events) == 0 {
				slog.DebugContext(ctx, "tracejob line outside of an event: ignoring", "line", i+1)
				continue
			}
			last := &events[len(events)-1]
			last.Message += " " + trimmed
			continue
		}

		ts, err := time.ParseInLocation(traceTimeLayout, m[1], loc)
		if err != nil {
			return nil, fmt.Errorf("%w: tracejob line %d: %w", ErrParse, i+1, err)
		}
		events = append(events, model.TraceEvent{
			Time:    ts,
			Source:  model.TraceSource(m[2]),
			Message: strings.TrimSpace(m[3]),
		})
	}
	return events, nil
}
