package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_CountersStartAtZero(t *testing.T) {
	c := New()
	assert.Equal(t, float64(0), testutil.ToFloat64(c.BatchesRun))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.FilesSkipped))
}

func TestCollector_CountersIncrement(t *testing.T) {
	c := New()
	c.BatchesRun.Inc()
	c.BatchFailures.Inc()
	c.FilesSkipped.Add(3)
	c.CacheHits.WithLabelValues("mtime").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.BatchesRun))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.BatchFailures))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.FilesSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.CacheHits.WithLabelValues("mtime")))
}

func TestServe_ReturnsOnContextCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Serve(ctx, "127.0.0.1:0") }()

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
