package parallel_test

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/parallel"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMap(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    int
		then     int32
	}{
		{"limit 1", 1, 1},
		{"limit 3", 3, 3},
		{"no limit", 0, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			var running, peak atomic.Int32
			f := func(_ context.Context, n int) (int, error) {
				now := running.Add(1)
				for {
					p := peak.Load()
					if now <= p || peak.CompareAndSwap(p, now) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				if n%2 == 1 {
					return 0, errors.New("odd")
				}
				return n * n, nil
			}

			input := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
			var squares []int
			var failed int
			for r := range parallel.Map(t.Context(), tc.given, input, f) {
				if r.Err != nil {
					failed++
					require.Equal(t, 1, r.In%2)
					continue
				}
				squares = append(squares, r.Out)
			}
			slices.Sort(squares)
			require.Equal(t, []int{0, 4, 16, 36, 64}, squares)
			require.Equal(t, 5, failed)
			require.LessOrEqual(t, peak.Load(), tc.then)
		})
	}
}

func TestMapBreak(t *testing.T) {
	t.Parallel()

	var canceled atomic.Int32
	f := func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			return 0, nil
		}
		select {
		case <-ctx.Done():
			canceled.Add(1)
			return 0, ctx.Err()
		case <-time.After(10 * time.Second):
			return n, nil
		}
	}

	start := time.Now()
	for r := range parallel.Map(t.Context(), 4, []int{0, 1, 2, 3}, f) {
		require.Equal(t, 0, r.In)
		break
	}
	require.Less(t, time.Since(start), 5*time.Second)
	require.LessOrEqual(t, canceled.Load(), int32(3))
}

func TestMapCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var calls atomic.Int32
	var ins []int
	for r := range parallel.Map(ctx, 1, []int{1, 2, 3}, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	}) {
		require.ErrorIs(t, r.Err, context.Canceled)
		ins = append(ins, r.In)
	}
	require.Zero(t, calls.Load())
	slices.Sort(ins)
	require.Equal(t, []int{1, 2, 3}, ins)
}

func TestMapCanceledWhileRunning(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	f := func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			cancel()
		}
		<-ctx.Done()
		return 0, ctx.Err()
	}

	var results int
	for r := range parallel.Map(ctx, 1, []int{0, 1, 2, 3}, f) {
		require.ErrorIs(t, r.Err, context.Canceled)
		results++
	}
	require.Equal(t, 4, results)
}
