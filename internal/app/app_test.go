package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldwatch/aegis/internal/config"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
)

func TestSelectMetricsProviderDisabledIsNoop(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.MetricsEnabled = false
	p := selectMetricsProvider(cfg)
	assert.Nil(t, metricsHandler(p))
}

func TestSelectMetricsProviderDefaultsToPrometheus(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.MetricsEnabled = true
	p := selectMetricsProvider(cfg)
	assert.NotNil(t, metricsHandler(p))
}

func TestSelectMetricsProviderOTelHasNoHandler(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.MetricsEnabled = true
	cfg.Telemetry.MetricsBackend = "otel"
	p := selectMetricsProvider(cfg)
	assert.IsType(t, metrics.NewOTelProvider(metrics.OTelProviderOptions{}), p)
	assert.Nil(t, metricsHandler(p))
}

func TestSelectMetricsProviderUnrecognizedFallsBackToPrometheus(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.MetricsEnabled = true
	cfg.Telemetry.MetricsBackend = "bogus"
	p := selectMetricsProvider(cfg)
	assert.NotNil(t, metricsHandler(p))
}
