package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pixload/internal/metrics"
)

type fakeProber struct {
	calls    atomic.Int64
	failFrom int64 // probes at index >= failFrom fail; -1 means never
}

func (f *fakeProber) CheckHealth(ctx context.Context) error {
	n := f.calls.Add(1)
	if f.failFrom >= 0 && n > f.failFrom {
		return errors.New("connection refused")
	}
	return nil
}

func TestMonitorCountsProbesAndFailures(t *testing.T) {
	reg := metrics.NewRegistry()
	prober := &fakeProber{failFrom: 3} // first 3 succeed, rest fail
	m := NewMonitor(prober, 20*time.Millisecond, reg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	total := reg.Counter(metrics.HealthChecks).Count()
	failed := reg.Counter(metrics.HealthChecksFailed).Count()

	assert.Greater(t, total, uint64(5))
	assert.Equal(t, total-3, failed)
}

func TestMonitorStopsOnCancel(t *testing.T) {
	reg := metrics.NewRegistry()
	prober := &fakeProber{failFrom: -1}
	m := NewMonitor(prober, 10*time.Millisecond, reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
