package reactor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	ctx   context.Context
	run   func(release func())
	abort func(err error)
}

func (j funcJob) Context() context.Context { return j.ctx }
func (j funcJob) Run(release func())      { j.run(release) }
func (j funcJob) Abort(err error) {
	if j.abort != nil {
		j.abort(err)
	}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(Config{MaxLeases: 4})
	require.NoError(t, err)
	defer func() { _ = r.Shutdown(context.Background()) }()

	stats := r.Stats()
	assert.Equal(t, runtime.NumCPU(), stats.Workers)
	assert.Equal(t, 4, stats.MaxLeases)
	assert.Zero(t, stats.Leased)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "negative workers", cfg: Config{Workers: -1, MaxLeases: 1}},
		{name: "negative queue", cfg: Config{QueueSize: -1, MaxLeases: 1}},
		{name: "zero leases", cfg: Config{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestSubmit_BoundsConcurrentLeases(t *testing.T) {
	const maxLeases = 3
	r, err := New(Config{Workers: 2, MaxLeases: maxLeases})
	require.NoError(t, err)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := r.Submit(funcJob{
			ctx: context.Background(),
			run: func(release func()) {
				defer wg.Done()
				defer release()
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
			},
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(maxLeases))
	require.NoError(t, r.Shutdown(context.Background()))
	assert.Zero(t, r.Stats().Leased)
}

func TestSubmit_AbortsCancelledJob(t *testing.T) {
	r, err := New(Config{Workers: 1, MaxLeases: 1})
	require.NoError(t, err)
	defer func() { _ = r.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	aborted := make(chan error, 1)
	require.NoError(t, r.Submit(funcJob{
		ctx:   ctx,
		run:   func(release func()) { release(); t.Error("cancelled job must not run") },
		abort: func(err error) { aborted <- err },
	}))

	select {
	case err := <-aborted:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not aborted")
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	r, err := New(Config{Workers: 1, QueueSize: 1, MaxLeases: 1})
	require.NoError(t, err)

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, r.Submit(funcJob{
		ctx: context.Background(),
		run: func(release func()) {
			defer release()
			close(started)
			<-block
		},
	}))
	<-started

	// The worker is now parked acquiring a lease for this job.
	require.NoError(t, r.Submit(funcJob{ctx: context.Background(), run: func(release func()) { release() }}))
	require.Eventually(t, func() bool { return r.Stats().Pending == 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.Submit(funcJob{ctx: context.Background(), run: func(release func()) { release() }}))
	err = r.Submit(funcJob{ctx: context.Background(), run: func(release func()) { release() }})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestShutdown_Idempotent(t *testing.T) {
	r, err := New(Config{Workers: 1, MaxLeases: 1})
	require.NoError(t, err)

	require.NoError(t, r.Shutdown(context.Background()))
	require.NoError(t, r.Shutdown(context.Background()))

	err = r.Submit(funcJob{ctx: context.Background(), run: func(release func()) { release() }})
	assert.ErrorIs(t, err, ErrShutdown)
}
