package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrometheusProviderRecordsMetrics(t *testing.T) {
	p := NewPrometheusProvider(PrometheusProviderOptions{})
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Namespace: "aegis", Name: "test_total", Labels: []string{"kit_id"}}})
	c.Inc(1, "kit-1")
	assert.NoError(t, p.Health(context.Background()))
	assert.NotNil(t, p.MetricsHandler())
}

func TestOTelProviderRecordsMetrics(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{})
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Namespace: "aegis", Name: "queue_depth"}})
	g.Set(3)
	g.Set(5)
	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Namespace: "aegis", Name: "poll_duration"}})
	h.Observe(0.25)
	assert.NoError(t, p.Health(context.Background()))
}

func TestNoopProviderIsSafeWithoutBackend(t *testing.T) {
	p := NewNoopProvider()
	p.NewCounter(CounterOpts{}).Inc(1)
	p.NewGauge(GaugeOpts{}).Set(1)
	assert.NoError(t, p.Health(context.Background()))
}
