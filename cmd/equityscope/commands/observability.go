package commands

import (
	"log/slog"
	"os"

	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/pkg/observability"
	"github.com/equityscope/equityscope/pkg/version"
)

// initObservability wires OTel tracing, metrics, and the structured
// logger for one application mode. Export stays disabled unless the
// standard OTEL_EXPORTER_OTLP_* variables are set.
func initObservability(cfg *config.Config, mode observability.AppMode, debug bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.LogJSON = cfg.Log.JSON
	obsCfg.LogLevel = logLevel(cfg.Log.Level)

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return observability.Init(obsCfg)
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
