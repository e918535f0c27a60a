package main

import (
	"log/slog"

	"github.com/niracler/zigbee-herdsman-converters/internal/external"
)

// initExternal loads the Lua converters from converters_dir. Builds with
// the no_external tag get an empty set.
func initExternal(cfg *Config, logger *slog.Logger) (*external.Converters, error) {
	return external.LoadDir(cfg.ConvertersDir, logger)
}
