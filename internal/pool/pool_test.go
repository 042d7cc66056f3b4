package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/pingrank/internal/probe"
)

func hostList(n int) []string {
	hosts := make([]string, n)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%d.example.com", i)
	}
	return hosts
}

func TestRunPass_ProbesEachTargetOnce(t *testing.T) {
	hosts := hostList(20)

	var mu sync.Mutex
	seen := make(map[string]int)
	fn := func(ctx context.Context, host string) probe.Outcome {
		mu.Lock()
		seen[host]++
		mu.Unlock()
		return probe.Success(1)
	}

	var completed atomic.Int32
	p := New(fn, WithLimit(3), WithCompleteHook(func(int, probe.Outcome) { completed.Add(1) }))

	require.NoError(t, p.RunPass(context.Background(), hosts))
	assert.Equal(t, int32(len(hosts)), completed.Load())
	for _, h := range hosts {
		assert.Equal(t, 1, seen[h], "host %s", h)
	}
}

func TestRunPass_NeverExceedsLimit(t *testing.T) {
	for _, tc := range []struct{ n, limit int }{{0, 3}, {1, 3}, {5, 1}, {20, 4}, {6, 6}, {3, 10}} {
		t.Run(fmt.Sprintf("n=%d,limit=%d", tc.n, tc.limit), func(t *testing.T) {
			var inFlight, peak atomic.Int32
			fn := func(ctx context.Context, host string) probe.Outcome {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return probe.Success(5)
			}

			p := New(fn, WithLimit(tc.limit))
			require.NoError(t, p.RunPass(context.Background(), hostList(tc.n)))
			assert.LessOrEqual(t, int(peak.Load()), tc.limit)
		})
	}
}

// TestRunPass_AllStartImmediatelyWhenLimitCoversTargets verifies that with
// limit >= len(targets) no probe waits for another to finish.
func TestRunPass_AllStartImmediatelyWhenLimitCoversTargets(t *testing.T) {
	const n = 6
	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	fn := func(ctx context.Context, host string) probe.Outcome {
		started.Done()
		select {
		case <-allStarted:
			return probe.Success(1)
		case <-time.After(2 * time.Second):
			return probe.Failure()
		}
	}

	var failures atomic.Int32
	p := New(fn, WithLimit(n), WithCompleteHook(func(_ int, out probe.Outcome) {
		if !out.OK {
			failures.Add(1)
		}
	}))
	require.NoError(t, p.RunPass(context.Background(), hostList(n)))
	assert.Zero(t, failures.Load(), "all probes should have been in flight together")
}

// TestRunPass_GreedyDispatch verifies that a slow probe does not hold back
// the rest of the queue: fast probes keep cycling through the free slot.
func TestRunPass_GreedyDispatch(t *testing.T) {
	hosts := []string{"slow", "fast1", "fast2", "fast3", "fast4"}
	var fastDone atomic.Int32
	fastAllDone := make(chan struct{})

	fn := func(ctx context.Context, host string) probe.Outcome {
		if host == "slow" {
			select {
			case <-fastAllDone:
				return probe.Success(100)
			case <-time.After(2 * time.Second):
				return probe.Failure()
			}
		}
		if fastDone.Add(1) == 4 {
			close(fastAllDone)
		}
		return probe.Success(1)
	}

	var slowOK atomic.Bool
	p := New(fn, WithLimit(2), WithCompleteHook(func(i int, out probe.Outcome) {
		if i == 0 {
			slowOK.Store(out.OK)
		}
	}))
	require.NoError(t, p.RunPass(context.Background(), hosts))
	assert.True(t, slowOK.Load(), "fast probes should all finish while the slow one holds its slot")
}

func TestRunPass_FIFODispatchAndSynchronousCompletion(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	fn := func(ctx context.Context, host string) probe.Outcome {
		record("probe:" + host)
		return probe.Success(1)
	}
	p := New(fn,
		WithLimit(1),
		WithDispatchHook(func(i int) { record(fmt.Sprintf("dispatch:%d", i)) }),
		WithCompleteHook(func(i int, _ probe.Outcome) { record(fmt.Sprintf("complete:%d", i)) }),
	)

	require.NoError(t, p.RunPass(context.Background(), []string{"a", "b", "c"}))
	assert.Equal(t, []string{
		"dispatch:0", "probe:a", "complete:0",
		"dispatch:1", "probe:b", "complete:1",
		"dispatch:2", "probe:c", "complete:2",
	}, events)
}

func TestRunPass_FailuresDoNotStopPass(t *testing.T) {
	fn := func(ctx context.Context, host string) probe.Outcome {
		if host == "h1.example.com" {
			return probe.Failure()
		}
		return probe.Success(10)
	}

	var ok, failed atomic.Int32
	p := New(fn, WithLimit(2), WithCompleteHook(func(_ int, out probe.Outcome) {
		if out.OK {
			ok.Add(1)
		} else {
			failed.Add(1)
		}
	}))
	require.NoError(t, p.RunPass(context.Background(), hostList(5)))
	assert.Equal(t, int32(4), ok.Load())
	assert.Equal(t, int32(1), failed.Load())
}

func TestRunPass_EmptyTargets(t *testing.T) {
	called := false
	p := New(func(ctx context.Context, host string) probe.Outcome {
		called = true
		return probe.Success(1)
	})
	require.NoError(t, p.RunPass(context.Background(), nil))
	assert.False(t, called)
}

func TestRunPass_CancelledContext(t *testing.T) {
	var probes atomic.Int32
	p := New(func(ctx context.Context, host string) probe.Outcome {
		probes.Add(1)
		return probe.Success(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.RunPass(ctx, hostList(5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, probes.Load())
}

// TestRunPass_InFlightProbeSurvivesCancel verifies that cancelling the pass
// does not cut short a probe that has already been dispatched.
func TestRunPass_InFlightProbeSurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	p := New(func(pctx context.Context, host string) probe.Outcome {
		cancel()
		<-release
		if pctx.Err() != nil {
			return probe.Failure()
		}
		return probe.Success(1)
	}, WithLimit(1))

	var got []probe.Outcome
	p.complete = func(_ int, out probe.Outcome) { got = append(got, out) }

	done := make(chan error, 1)
	go func() { done <- p.RunPass(ctx, hostList(3)) }()
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunPass did not return after cancel")
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].OK)
}

func TestRunPass_HookPanicRecovered(t *testing.T) {
	var completed atomic.Int32
	p := New(func(ctx context.Context, host string) probe.Outcome {
		return probe.Success(1)
	},
		WithLimit(2),
		WithDispatchHook(func(i int) {
			if i == 1 {
				panic("boom")
			}
		}),
		WithCompleteHook(func(int, probe.Outcome) { completed.Add(1) }),
	)

	require.NoError(t, p.RunPass(context.Background(), hostList(4)))
	assert.Equal(t, int32(4), completed.Load())
}

func TestRunPass_WithRate(t *testing.T) {
	var probes atomic.Int32
	p := New(func(ctx context.Context, host string) probe.Outcome {
		probes.Add(1)
		return probe.Success(1)
	}, WithLimit(4), WithRate(1000, 1))

	require.NoError(t, p.RunPass(context.Background(), hostList(10)))
	assert.Equal(t, int32(10), probes.Load())
}

func TestNew_Defaults(t *testing.T) {
	p := New(nil, WithLimit(0), WithRate(0, 0))
	assert.Equal(t, DefaultLimit, p.Limit())
	assert.Nil(t, p.limiter)
}
