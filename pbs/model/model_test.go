package model_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"
	"github.com/stretchr/testify/require"
)

func TestParseWalltime(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     time.Duration
		err      bool
	}{
		{scenario: "hh:mm:ss", given: "01:02:03", then: time.Hour + 2*time.Minute + 3*time.Second},
		{scenario: "more than a day", given: "48:00:00", then: 48 * time.Hour},
		{scenario: "mm:ss", given: "10:30", then: 10*time.Minute + 30*time.Second},
		{scenario: "seconds", given: "90", then: 90 * time.Second},
		{scenario: "padded", given: " 00:00:05 ", then: 5 * time.Second},
		{scenario: "empty", given: "", err: true},
		{scenario: "too many fields", given: "1:2:3:4", err: true},
		{scenario: "not a number", given: "aa:00:00", err: true},
		{scenario: "negative", given: "-1:00:00", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			d, err := model.ParseWalltime(tc.given)
			if tc.err {
				require.Error(t, err)
				require.ErrorIs(t, err, model.ErrWalltimeFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then, d)
		})
	}
}

func TestFormatWalltime(t *testing.T) {
	t.Parallel()
	require.Equal(t, "26:03:04", model.FormatWalltime(26*time.Hour+3*time.Minute+4*time.Second))
	require.Equal(t, "00:00:00", model.FormatWalltime(-time.Second))
}

func TestJobDurations(t *testing.T) {
	t.Parallel()
	job := model.NewJob("1.server")
	_, ok := job.Walltime()
	require.False(t, ok)

	job.ResourcesUsed["walltime"] = "00:10:00"
	job.ResourcesUsed["cput"] = "garbage"
	job.ResourceList["walltime"] = "01:00:00"

	d, ok := job.Walltime()
	require.True(t, ok)
	require.Equal(t, 10*time.Minute, d)

	_, ok = job.CPUTime()
	require.False(t, ok)

	d, ok = job.WalltimeLimit()
	require.True(t, ok)
	require.Equal(t, time.Hour, d)
}

func TestJobStateName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "running", model.Job{State: "R"}.StateName())
	require.Equal(t, "queued", model.Job{State: "Q"}.StateName())
	require.Equal(t, "unknown", model.Job{}.StateName())
	require.Equal(t, "Z", model.Job{State: "Z"}.StateName())
}

func TestQueueStateCounts(t *testing.T) {
	t.Parallel()
	q := model.NewQueue("batch")
	require.Equal(t, -1, q.Priority)
	require.Equal(t, -1, q.TotalJobs)
	require.Equal(t, -1, q.MaxUserRun)

	q.StateCount = "Transit:0 Queued:3 Held:x Running:1 bogus"
	require.Equal(t, map[string]int{
		"transit": 0,
		"queued":  3,
		"running": 1,
	}, q.StateCounts())
}

func TestParseNodeState(t *testing.T) {
	t.Parallel()
	for _, st := range model.NodeStates() {
		require.Equal(t, st, model.ParseNodeState(string(st)))
	}
	require.Equal(t, model.NodeStateJobExclusive, model.ParseNodeState(" Job-Exclusive "))
	require.Equal(t, model.NodeStateUnknown, model.ParseNodeState("sleeping"))
	require.Equal(t, model.NodeStateUnknown, model.ParseNodeState(""))
}

func TestNodeAvailable(t *testing.T) {
	t.Parallel()
	n := model.NewNode("n1")
	require.False(t, n.Available())

	n.State = model.NodeStateFree
	n.States = []model.NodeState{model.NodeStateFree}
	require.True(t, n.Available())

	n.States = append(n.States, model.NodeStateOffline)
	require.False(t, n.Available())
	require.True(t, n.HasState(model.NodeStateOffline))
}

func TestTraceSource(t *testing.T) {
	t.Parallel()
	require.Equal(t, "server", model.TraceSourceServer.String())
	require.Equal(t, "scheduler", model.TraceSourceScheduler.String())
	require.Equal(t, "Q", model.TraceSource("Q").String())
}
