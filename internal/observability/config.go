package observability

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/freightdesk/internal/config"
)

// Config is the resolved observability setup shared by the logger, tracer and
// meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	config.ObservabilityConfig
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// NewConfig validates the observability settings. A typo in LOG_LEVEL or the
// OTLP protocol fails startup rather than silently dropping telemetry.
func NewConfig(cfg config.Config) (Config, error) {
	out := Config{
		ServiceName:         strings.TrimSpace(cfg.AppName),
		Environment:         strings.TrimSpace(cfg.Environment),
		Version:             strings.TrimSpace(cfg.AppVersion),
		ObservabilityConfig: cfg.Observability,
	}
	if out.ServiceName == "" {
		out.ServiceName = "freightdesk"
	}

	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if !validLogLevels[out.LogLevel] {
		return Config{}, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", out.LogLevel)
	}
	switch out.LogFormat {
	case "":
		out.LogFormat = "json"
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT %q is not json or console", out.LogFormat)
	}

	switch out.OtelProtocol {
	case "":
		out.OtelProtocol = "grpc"
	case "grpc", "http", "http/protobuf":
	default:
		return Config{}, fmt.Errorf("unsupported otlp protocol %q", out.OtelProtocol)
	}
	if r := out.OtelSamplingRatio; r <= 0 || r > 1 {
		out.OtelSamplingRatio = 0.1
	}
	return out, nil
}

// Debug is on for an explicit debug level and for local environments.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
