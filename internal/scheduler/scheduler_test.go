package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicRunsUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	done := make(chan struct{})
	go func() {
		defer close(done)
		Periodic(ctx, "test", time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 3 {
				cancel()
			}
			return errors.New("errors do not stop the loop")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never exited")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestPeriodicFatalStopsOnError(t *testing.T) {
	var runs atomic.Int32
	err := PeriodicFatal(context.Background(), "test", time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 2 {
			return errors.New("fatal")
		}
		return nil
	})
	assert.EqualError(t, err, "fatal")
	assert.Equal(t, int32(2), runs.Load())
}

func TestOnce(t *testing.T) {
	t.Run("runs after the delay", func(t *testing.T) {
		done := make(chan struct{})
		Once(context.Background(), 5*time.Millisecond, func(context.Context) {
			close(done)
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task never ran")
		}
	})

	t.Run("cancellation wins over the timer", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ran := make(chan struct{}, 1)
		Once(ctx, 10*time.Millisecond, func(context.Context) {
			ran <- struct{}{}
		})
		select {
		case <-ran:
			t.Fatal("canceled task still ran")
		case <-time.After(50 * time.Millisecond):
		}
	})
}
