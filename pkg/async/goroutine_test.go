package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/larsjoon/joonify/pkg/observability"
)

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func loggingContext(buf *bytes.Buffer) context.Context {
	return observability.WithLogger(context.Background(), observability.NewLogger(observability.DebugLevel, buf))
}

func TestSafeGo_Success(t *testing.T) {
	var executed atomic.Bool

	wait(t, SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	assert.True(t, executed.Load())
}

func TestSafeGo_ErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer

	wait(t, SafeGo(loggingContext(&buf), time.Second, "scheduled aggregation", func(ctx context.Context) error {
		return errors.New("upstream down")
	}))

	assert.Contains(t, buf.String(), "Background task failed")
	assert.Contains(t, buf.String(), "upstream down")
	assert.Contains(t, buf.String(), "scheduled aggregation")
}

func TestSafeGo_Timeout(t *testing.T) {
	var completed atomic.Bool

	wait(t, SafeGo(context.Background(), 50*time.Millisecond, "test task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	assert.False(t, completed.Load(), "task should be canceled by its timeout")
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer

	wait(t, SafeGo(loggingContext(&buf), time.Second, "test task", func(ctx context.Context) error {
		panic("test panic")
	}))

	assert.Contains(t, buf.String(), "Background task panicked")
	assert.Contains(t, buf.String(), "test panic")
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var completed atomic.Bool

	done := SafeGo(ctx, 5*time.Second, "test task", func(ctx context.Context) error {
		close(started)
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	<-started
	cancel()
	wait(t, done)

	assert.False(t, completed.Load())
}
