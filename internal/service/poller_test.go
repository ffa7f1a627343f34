package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/config"
	"github.com/CZERTAINLY/pbsctl/internal/service"
	"github.com/CZERTAINLY/pbsctl/pbs/model"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSource) Snapshot(context.Context) (model.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	n := model.NewNode("node01")
	n.State = model.NodeStateFree
	return model.Snapshot{
		Taken: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Nodes: []model.Node{n},
	}, nil
}

type failingSink struct{}

func (failingSink) Write(context.Context, []byte) error {
	return errors.New("disk full")
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	poller := service.NewPoller(&fakeSource{}, config.Schedule{Every: time.Minute}, service.NewWriteSink(&buf))
	require.NoError(t, poller.RunOnce(t.Context()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &snap))
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, "node01", snap.Nodes[0].Name)
	require.Equal(t, model.NodeStateFree, snap.Nodes[0].State)
}

func TestRunOnceErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("qstat: exit code 1")
	poller := service.NewPoller(&fakeSource{err: boom}, config.Schedule{Every: time.Minute})
	require.ErrorIs(t, poller.RunOnce(t.Context()), boom)

	var buf bytes.Buffer
	poller = service.NewPoller(&fakeSource{}, config.Schedule{Every: time.Minute}, failingSink{}, service.NewWriteSink(&buf))
	err := poller.RunOnce(t.Context())
	require.EqualError(t, err, "disk full")
	require.NotEmpty(t, buf.String(), "other sinks are written")
}

type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func TestRun(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	source := &fakeSource{}
	poller := service.NewPoller(source, config.Schedule{Every: 20 * time.Millisecond}, service.NewWriteSink(&buf))

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, poller.Run(ctx))

	require.GreaterOrEqual(t, source.calls.Load(), int32(2))
	require.GreaterOrEqual(t, strings.Count(buf.String(), "\n"), 2)
}

func TestRunFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: errors.New("boom")}
	poller := service.NewPoller(source, config.Schedule{Every: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, poller.Run(ctx))
	require.GreaterOrEqual(t, source.calls.Load(), int32(2))
}

func TestRunEmptySchedule(t *testing.T) {
	t.Parallel()

	poller := service.NewPoller(&fakeSource{}, config.Schedule{})
	require.Error(t, poller.Run(t.Context()))
}

func TestTriggerDoesNotBlock(t *testing.T) {
	t.Parallel()

	poller := service.NewPoller(&fakeSource{}, config.Schedule{Every: time.Hour})
	for range 10 {
		poller.Trigger()
	}
}

func TestPollerFromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := &fakeSource{}
	poller, err := service.PollerFromConfig(t.Context(), config.Watch{Schedule: "PT1H", Dir: dir}, source)
	require.NoError(t, err)
	require.NoError(t, poller.RunOnce(t.Context()))

	matches, err := filepath.Glob(filepath.Join(dir, "pbs-snapshot-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, err = service.PollerFromConfig(t.Context(), config.Watch{Schedule: "soon"}, source)
	require.Error(t, err)

	_, err = service.PollerFromConfig(t.Context(), config.Watch{Schedule: "PT1M", Dir: filepath.Join(dir, "missing")}, source)
	require.ErrorIs(t, err, os.ErrNotExist)
}
