package latch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch_ResolveOnce(t *testing.T) {
	l := New[int]()

	assert.True(t, l.Resolve(1, nil))
	assert.False(t, l.Resolve(2, errors.New("late")))

	v, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestLatch_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	l := Go(func() (string, error) {
		return "", boom
	})

	_, err := l.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLatch_WaitContext(t *testing.T) {
	l := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-l.Done():
		t.Fatal("latch resolved without Resolve")
	default:
	}
}

func TestLatch_ConcurrentWaiters(t *testing.T) {
	l := New[int]()
	results := make(chan int, 4)

	for i := 0; i < 4; i++ {
		go func() {
			v, _ := l.Wait(context.Background())
			results <- v
		}()
	}

	l.Resolve(7, nil)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 7, <-results)
	}
}
