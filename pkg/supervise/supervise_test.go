package supervise

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_StartStop(t *testing.T) {
	w := New("test")
	var ticks atomic.Int32

	require.NoError(t, w.Start(context.Background(), func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
				ticks.Add(1)
			}
		}
	}))

	assert.True(t, w.Running())
	assert.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, 5*time.Millisecond)

	w.Stop()
	assert.False(t, w.Running())

	select {
	case <-w.Done():
	default:
		t.Fatal("done channel not closed after Stop")
	}
}

func TestWorker_DoubleStart(t *testing.T) {
	w := New("test")
	block := make(chan struct{})

	require.NoError(t, w.Start(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		close(block)
	}))
	defer w.Stop()

	err := w.Start(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrRunning)
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := New("idle")
	w.Stop()
	assert.False(t, w.Running())
}

func TestWorker_PanicRecovered(t *testing.T) {
	w := New("panicky")
	require.NoError(t, w.Start(context.Background(), func(ctx context.Context) {
		panic("boom")
	}))

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not finish after panic")
	}
	assert.False(t, w.Running())

	require.NoError(t, w.Start(context.Background(), func(ctx context.Context) { <-ctx.Done() }))
	w.Stop()
}
