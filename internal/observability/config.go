package observability

import (
	"strings"

	"github.com/smallbiznis/studioledger/internal/config"
)

// Config is the slice of application config the logger, tracer and meters need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "studioledger"
	}

	out := Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.Telemetry.LogLevel,
		LogFormat:            cfg.Telemetry.LogFormat,
		OtelEnabled:          cfg.Telemetry.OtelEnabled,
		OtelExporterEndpoint: cfg.Telemetry.OtelEndpoint,
		OtelExporterProtocol: cfg.Telemetry.OtelProtocol,
		OtelSamplingRatio:    cfg.Telemetry.SamplingRatio,
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.OtelSamplingRatio <= 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = 1
	}
	return out
}

// Debug turns on verbose request logs and error stacks.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
