package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("GET /healthz", 200, 5*time.Millisecond)
		IncSync("completed")
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	IncCache(true)
	assert.Equal(t, before+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	before = testutil.ToFloat64(statusTransitions.WithLabelValues("PENDING", "APPROVED"))
	IncStatusTransition("PENDING", "APPROVED")
	assert.Equal(t, before+1, testutil.ToFloat64(statusTransitions.WithLabelValues("PENDING", "APPROVED")))

	before = testutil.ToFloat64(webhookOutcomes.WithLabelValues("not_found"))
	IncWebhook("not_found")
	assert.Equal(t, before+1, testutil.ToFloat64(webhookOutcomes.WithLabelValues("not_found")))
}
