package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_fetch_duration_seconds",
		Help: "Test histogram",
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_probe_duration_seconds",
		Help: "Test histogram vec",
	}, []string{"kind"})

	NewTimer().ObserveDurationVec(vec, "system")
	NewTimer().ObserveDurationVec(vec, "app")

	assert.Equal(t, 2, testutil.CollectAndCount(vec))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultLabel(nil))
	assert.Equal(t, ResultError, ResultLabel(errors.New("boom")))
}
