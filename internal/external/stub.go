//go:build no_external

package external

import (
	"errors"
	"log/slog"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
)

// Converters is empty when external converters are disabled.
type Converters struct {
	Profiles []*convert.Profile
}

// LoadDir loads nothing when external converters are disabled.
func LoadDir(dir string, logger *slog.Logger) (*Converters, error) {
	if dir != "" {
		logger.Warn("external converters disabled at build time", "dir", dir)
	}
	return &Converters{}, nil
}

// Load always fails when external converters are disabled.
func (c *Converters) Load(name, _ string) (*convert.Profile, error) {
	return nil, errors.New(name + ": external converters disabled")
}

// Close is a no-op.
func (c *Converters) Close() {}
