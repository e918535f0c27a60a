//go:build !no_external

// Package external loads device profiles written in Lua. Each *.lua file
// returns one definition table:
//
//	local modes = { off = 0, cool = 3, heat = 4 }
//	return {
//	  zigbee_model = { "TH-01" },
//	  model = "TH01", vendor = "Acme",
//	  exposes = { { type = "enum", name = "system_mode", access = 7, values = { "off", "cool", "heat" } } },
//	  to_zigbee = { {
//	    keys = { "system_mode" }, enum = modes,
//	    set = function(key, code, state)
//	      return { { type = "write", cluster = "hvacThermostat", attribute = "systemMode", value = code } }
//	    end,
//	    get = { cluster = "hvacThermostat", attributes = { "systemMode" } },
//	  } },
//	  from_zigbee = { { cluster = "hvacThermostat", types = { "attributeReport" },
//	    convert = function(msg, state) return { local_temperature = msg.data.localTemp / 100 } end } },
//	  configure = { { endpoint = 1, bind = { "hvacThermostat" } } },
//	}
package external

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/devices"
)

// Converters holds the profiles loaded from Lua and the states backing
// their converter functions.
type Converters struct {
	Profiles []*convert.Profile
	vms      []*scriptVM
}

// LoadDir loads every *.lua file in dir in name order. A missing directory
// yields no profiles. A file that fails to load or validate is an error.
func LoadDir(dir string, logger *slog.Logger) (*Converters, error) {
	c := &Converters{}
	if dir == "" {
		return c, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("glob converters dir: %w", err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		code, err := os.ReadFile(path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := c.Load(filepath.Base(path), string(code)); err != nil {
			c.Close()
			return nil, err
		}
	}
	logger.Info("external converters loaded", "dir", dir, "profiles", len(c.Profiles))
	return c, nil
}

// Load runs one converter file and adds its profile.
func (c *Converters) Load(name, code string) (*convert.Profile, error) {
	vm := newScriptVM(name)
	def, err := vm.run(code)
	if err != nil {
		vm.close()
		return nil, err
	}
	p, err := vm.profile(def)
	if err != nil {
		vm.close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := devices.ValidateProfile(p); err != nil {
		vm.close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c.Profiles = append(c.Profiles, p)
	c.vms = append(c.vms, vm)
	return p, nil
}

// Close releases every Lua state. The profiles must not be used afterwards.
func (c *Converters) Close() {
	for _, vm := range c.vms {
		vm.close()
	}
	c.vms = nil
}
