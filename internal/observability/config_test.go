package observability

import (
	"testing"

	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:  "1.2.3",
		Environment: " production ",
		Telemetry: config.TelemetryConfig{
			LogFormat:     "console",
			OtelEnabled:   true,
			OtelEndpoint:  "collector:4317",
			OtelProtocol:  "grpc",
			SamplingRatio: 0.25,
		},
	})

	assert.Equal(t, "studioledger", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.OtelSamplingRatio)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigClampsSamplingRatio(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{SamplingRatio: 4}})
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "test"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "warn"}.Debug())
}
