package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsjoon/joonify/pkg/analytics"
	"github.com/larsjoon/joonify/pkg/observability"
)

type countingRunner struct {
	calls atomic.Int32
	fail  bool
	panic bool
}

func (r *countingRunner) Run(ctx context.Context) (*analytics.CycleResult, error) {
	r.calls.Add(1)
	if r.panic {
		panic("boom")
	}
	if r.fail {
		return nil, errors.New("upstream down")
	}
	return &analytics.CycleResult{Success: true, Visitors: 1}, nil
}

func TestRunScheduled(t *testing.T) {
	tests := []struct {
		name   string
		runner *countingRunner
		want   string
	}{
		{"success", &countingRunner{}, "Aggregation completed"},
		{"failure", &countingRunner{fail: true}, "Aggregation failed"},
		{"panic", &countingRunner{panic: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			logger := setupLogger("info")
			logger.SetOutput(&out)
			lib := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- runScheduled(ctx, tt.runner, "@every 1s", logger, lib) }()

			require.Eventually(t, func() bool { return tt.runner.calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
			cancel()

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("runScheduled did not stop")
			}
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRunScheduled_BadSchedule(t *testing.T) {
	logger := setupLogger("info")
	err := runScheduled(context.Background(), &countingRunner{}, "whenever", logger, observability.NewLogger(observability.InfoLevel, nil))
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, setupLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, setupLogger("nonsense").GetLevel())
}
