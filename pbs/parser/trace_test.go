package parser_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
	"github.com/CZERTAINLY/pbsctl/pbs/parser"

	"github.com/stretchr/testify/require"
)

func TestParseTrace(t *testing.T) {
	t.Parallel()

	events, err := parser.ParseTraceIn(t.Context(), fixture(t, "tracejob.txt"), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 5)

	require.Equal(t, model.TraceEvent{
		Time:    time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Source:  model.TraceSourceServer,
		Message: "enqueuing into batch, state 1 hop 1",
	}, events[0])
	require.Equal(t, model.TraceSourceAccounting, events[1].Source)
	require.Equal(t, "queue=batch", events[1].Message)
	require.Equal(t, model.TraceSourceScheduler, events[2].Source)

	require.Equal(t, model.TraceSourceMom, events[3].Source)
	require.Equal(t, "job was started on node01", events[3].Message)
	require.Equal(t, time.Date(2026, 10, 19, 10, 0, 1, 250*int(time.Millisecond), time.UTC), events[3].Time)

	require.Equal(t, "Exit_status=0 resources_used.cput=00:01:40", events[4].Message)
}

func TestParseTraceEdgeCases(t *testing.T) {
	t.Parallel()

	events, err := parser.ParseTrace(t.Context(), "")
	require.NoError(t, err)
	require.Empty(t, events)
	require.NotNil(t, events)

	events, err = parser.ParseTraceIn(t.Context(), "orphan line\r\n10/19/2026 10:00:00  S    x\r\n", time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "x", events[0].Message)

	_, err = parser.ParseTraceIn(t.Context(), "13/45/2026 10:00:00  S    bad date\n", time.UTC)
	require.ErrorIs(t, err, parser.ErrParse)
}
