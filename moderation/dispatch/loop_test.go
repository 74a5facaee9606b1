package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc, chan error) {
	l := NewLoop(nil, 16)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel, errc
}

func TestJobsRunInOrder(t *testing.T) {
	assert := assert.New(t)
	l, _, _ := startLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Submit("test", func(context.Context) { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), "test", func(context.Context) {}))
	assert.Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestJobsNeverOverlap(t *testing.T) {
	assert := assert.New(t)
	l, _, _ := startLoop(t)

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), "test", func(context.Context) {
				mu.Lock()
				active++
				maxActive = max(maxActive, active)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Equal(1, maxActive)
}

func TestPanicIsRecovered(t *testing.T) {
	assert := assert.New(t)
	l, _, _ := startLoop(t)

	assert.NoError(l.Do(context.Background(), "boom", func(context.Context) { panic("handler bug") }))
	ran := false
	assert.NoError(l.Do(context.Background(), "after", func(context.Context) { ran = true }))
	assert.True(ran)
}

func TestDispatcherAdapter(t *testing.T) {
	assert := assert.New(t)
	l, _, _ := startLoop(t)

	fired := make(chan struct{})
	l.Dispatcher("timer")(func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("dispatched callback never ran")
	}
	assert.NoError(l.Do(context.Background(), "sync", func(context.Context) {}))
}

func TestSubmitAfterStop(t *testing.T) {
	assert := assert.New(t)
	l, cancel, errc := startLoop(t)

	cancel()
	assert.NoError(<-errc)
	assert.ErrorIs(l.Submit("late", func(context.Context) {}), ErrStopped)
	assert.ErrorIs(l.Do(context.Background(), "late", func(context.Context) {}), ErrStopped)
}
