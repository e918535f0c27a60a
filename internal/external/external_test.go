//go:build !no_external

package external

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/convert/converttest"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl/clusters"
)

const thermostatScript = `
local modes = { off = 0, cool = 3, heat = 4 }

return {
  zigbee_model = { "TH-01" },
  model = "TH01",
  vendor = "Acme",
  description = "Test thermostat",
  exposes = {
    { type = "numeric", name = "local_temperature", access = 5, unit = "°C" },
    { type = "enum", name = "system_mode", access = 7, values = { "off", "cool", "heat" } },
    { type = "numeric", name = "occupied_cooling_setpoint", access = 7, min = 16, max = 30, step = 0.5 },
    { type = "binary", name = "quiet_fan", access = 3, value_on = true, value_off = false },
  },
  to_zigbee = {
    {
      keys = { "system_mode" },
      enum = modes,
      set = function(key, code, state)
        return { { type = "write", cluster = "hvacThermostat", attribute = "systemMode", value = code } }
      end,
      get = { cluster = "hvacThermostat", attributes = { "systemMode" } },
    },
    {
      keys = { "occupied_cooling_setpoint" },
      accepts = { kind = "numeric", min = 16, max = 30, step = 0.5 },
      set = function(key, value, state)
        return { { type = "write", cluster = "hvacThermostat", attribute = "occupiedCoolingSetpoint", value = value * 100 } },
               { occupied_cooling_setpoint = value }
      end,
    },
    {
      keys = { "quiet_fan" },
      accepts = { kind = "bool" },
      set = function(key, value, state)
        local v = 0
        if value then v = 1 end
        return { { type = "manufacturer_write", cluster = "hvacFanCtrl", attr_id = 0x4273, data_type = 0x10,
                   value = v, manufacturer_code = 0x1243 } },
               { quiet_fan = value }
      end,
    },
    {
      keys = { "local_temperature" },
      get = { cluster = "hvacThermostat", attributes = "localTemp" },
    },
  },
  from_zigbee = {
    {
      cluster = "hvacThermostat",
      types = { "attributeReport", "readResponse" },
      convert = function(msg, state)
        local out = {}
        if msg.data.localTemp ~= nil then out.local_temperature = msg.data.localTemp / 100 end
        return out
      end,
    },
  },
  configure = {
    {
      endpoint = 1,
      bind = { "hvacThermostat", "hvacFanCtrl" },
      reporting = { { cluster = "hvacThermostat", attribute = "localTemp", min = 0, max = 3600, change = 10 } },
    },
  },
}
`

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loadThermostat(t *testing.T) *convert.Profile {
	t.Helper()
	c := &Converters{}
	t.Cleanup(c.Close)
	p, err := c.Load("thermostat.lua", thermostatScript)
	require.NoError(t, err)
	return p
}

func newOutbound() *convert.Outbound {
	registry := zcl.NewRegistry(newTestLogger())
	clusters.RegisterAll(registry)
	return convert.NewOutbound(registry, newTestLogger())
}

func TestLoadDefinition(t *testing.T) {
	p := loadThermostat(t)

	assert.Equal(t, []string{"TH-01"}, p.ZigbeeModel)
	assert.Equal(t, "TH01", p.Model)
	assert.Equal(t, "Acme", p.Vendor)
	require.Len(t, p.Exposes, 4)
	assert.Equal(t, "system_mode", p.Exposes[1].Property)
	assert.Equal(t, []string{"off", "cool", "heat"}, p.Exposes[1].Values)
	assert.True(t, p.Exposes[1].Settable())
	assert.False(t, p.Exposes[0].Settable())
	require.NotNil(t, p.Exposes[2].ValueStep)
	assert.Equal(t, 0.5, *p.Exposes[2].ValueStep)
	assert.Len(t, p.ToZigbee, 4)
	assert.Len(t, p.FromZigbee, 1)
	assert.NotNil(t, p.Configure)
}

func TestEnumSet(t *testing.T) {
	p := loadThermostat(t)
	ep := converttest.New(1)

	st, err := newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "system_mode", "COOL")
	require.NoError(t, err)
	assert.Equal(t, convert.State{"system_mode": "cool"}, st)

	writes := ep.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, uint16(0x0201), writes[0].ClusterID)
	assert.Equal(t, uint16(0x001C), writes[0].Records[0].ID)
	assert.Equal(t, int64(3), writes[0].Records[0].Value)
}

func TestEnumSetRejectsUnknownToken(t *testing.T) {
	p := loadThermostat(t)
	ep := converttest.New(1)

	_, err := newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "system_mode", "dry")
	assert.ErrorIs(t, err, convert.ErrInvalidValue)
	assert.Empty(t, ep.Calls())
}

func TestNumericSet(t *testing.T) {
	p := loadThermostat(t)
	ep := converttest.New(1)

	st, err := newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "occupied_cooling_setpoint", 21.5)
	require.NoError(t, err)
	assert.Equal(t, 21.5, st["occupied_cooling_setpoint"])

	writes := ep.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, int64(2150), writes[0].Records[0].Value)

	_, err = newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "occupied_cooling_setpoint", 40)
	assert.ErrorIs(t, err, convert.ErrInvalidValue)

	_, err = newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "occupied_cooling_setpoint", 21.3)
	assert.ErrorIs(t, err, convert.ErrInvalidValue)
	assert.Len(t, ep.Writes(), 1)
}

func TestSetWithoutStateMirrorsValue(t *testing.T) {
	c := &Converters{}
	defer c.Close()
	p, err := c.Load("plain.lua", `return { model = "m", zigbee_model = { "x" },
	  to_zigbee = {
	    { keys = { "led" }, accepts = { kind = "bool" }, set = function(key, value)
	      local v = 0
	      if value then v = 1 end
	      return { { type = "write", cluster = "hvacThermostat", attribute = "systemMode", value = v } }
	    end },
	    { keys = { "level" }, accepts = { kind = "numeric", min = 0, max = 10 }, set = function(key, value)
	      return { { type = "write", cluster = "hvacThermostat", attribute = "systemMode", value = value } }
	    end },
	  } }`)
	require.NoError(t, err)

	out := newOutbound()
	ep := converttest.New(1)
	st, err := out.Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "led", true)
	require.NoError(t, err)
	assert.Equal(t, convert.State{"led": true}, st)

	st, err = out.Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "level", 7)
	require.NoError(t, err)
	assert.Equal(t, convert.State{"level": 7.0}, st)
	assert.Len(t, ep.Writes(), 2)
}

func TestManufacturerWrite(t *testing.T) {
	p := loadThermostat(t)
	ep := converttest.New(1)

	st, err := newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "quiet_fan", true)
	require.NoError(t, err)
	assert.Equal(t, true, st["quiet_fan"])

	writes := ep.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, uint16(0x0202), writes[0].ClusterID)
	assert.Equal(t, uint16(0x1243), writes[0].ManufacturerCode)
	assert.Equal(t, uint16(0x4273), writes[0].Records[0].ID)
	assert.Equal(t, uint8(0x10), writes[0].Records[0].Type)
	assert.Equal(t, int64(1), writes[0].Records[0].Value)
}

func TestGet(t *testing.T) {
	p := loadThermostat(t)
	ep := converttest.New(1)

	_, err := newOutbound().Get(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "local_temperature")
	require.NoError(t, err)

	calls := ep.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, converttest.KindRead, calls[0].Kind)
	assert.Equal(t, []uint16{0x0000}, calls[0].AttrIDs)
}

func TestFromZigbee(t *testing.T) {
	p := loadThermostat(t)
	in := convert.NewInbound(newTestLogger())

	patch, err := in.Handle(context.Background(), p, nil, &convert.Message{
		Type:     convert.TypeAttributeReport,
		Cluster:  "hvacThermostat",
		Data:     map[string]any{"localTemp": int16(2150)},
		Endpoint: converttest.New(1),
	})
	require.NoError(t, err)
	assert.Equal(t, convert.State{"local_temperature": 21.5}, patch)

	patch, err = in.Handle(context.Background(), p, nil, &convert.Message{
		Type:    convert.TypeAttributeReport,
		Cluster: "hvacThermostat",
		Data:    map[string]any{"systemMode": uint8(3)},
	})
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestConfigure(t *testing.T) {
	p := loadThermostat(t)
	dev := converttest.NewDevice("00124b0001020304", 1)
	ep := dev.Endpoints[1]

	require.NoError(t, p.Configure(context.Background(), dev, newTestLogger()))

	var kinds []string
	for _, c := range ep.Calls() {
		kinds = append(kinds, fmt.Sprintf("%s 0x%04X", c.Kind, c.ClusterID))
	}
	assert.Equal(t, []string{
		"bind 0x0201",
		"bind 0x0202",
		"reporting 0x0201",
	}, kinds)

	assert.Error(t, p.Configure(context.Background(), converttest.NewDevice("00124b0001020304"), newTestLogger()))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax error", `return {`},
		{"no return", `local x = 1`},
		{"not a table", `return 42`},
		{"no model", `return { zigbee_model = { "x" } }`},
		{"bad expose type", `return { model = "m", zigbee_model = { "x" }, exposes = { { type = "light", name = "x" } } }`},
		{"to_zigbee without keys", `return { model = "m", zigbee_model = { "x" }, to_zigbee = { { get = { cluster = "genBasic", attributes = { "zclVersion" } } } } }`},
		{"sandboxed os", `return { model = os.time() }`},
		{"runaway script", `while true do end`},
		{
			"expose value not accepted",
			`return { model = "m", zigbee_model = { "x" },
			  exposes = { { type = "enum", name = "mode", access = 7, values = { "a", "b" } } },
			  to_zigbee = { { keys = { "mode" }, enum = { a = 0 }, set = function() return {} end } } }`,
		},
		{
			"manufacturer write without code",
			`return { model = "m", zigbee_model = { "x" },
			  to_zigbee = { { keys = { "k" }, accepts = { kind = "bool" }, set = function()
			    return { { type = "manufacturer_write", cluster = "hvacFanCtrl", attr_id = 1, data_type = 0x10, value = 1 } }
			  end } } }`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Converters{}
			defer c.Close()
			_, err := c.Load("bad.lua", tt.code)
			assert.Error(t, err)
			assert.Empty(t, c.Profiles)
		})
	}
}

func TestSetErrorFromScript(t *testing.T) {
	c := &Converters{}
	defer c.Close()
	p, err := c.Load("fail.lua", `return { model = "m", zigbee_model = { "x" },
	  to_zigbee = { { keys = { "k" }, accepts = { kind = "string" }, set = function(key, value)
	    if value == "boom" then error("refused") end
	    return {}
	  end } } }`)
	require.NoError(t, err)

	ep := converttest.New(1)
	_, err = newOutbound().Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "k", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Empty(t, ep.Calls())
}

func TestConcurrentSets(t *testing.T) {
	p := loadThermostat(t)
	out := newOutbound()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := converttest.New(1)
			_, err := out.Set(context.Background(), convert.Target{Profile: p, Endpoint: ep}, "occupied_cooling_setpoint", 16+float64(i%10))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(thermostatScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"),
		[]byte(`return { model = "B1", zigbee_model = { "b" }, exposes = {} }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	c, err := LoadDir(dir, newTestLogger())
	require.NoError(t, err)
	defer c.Close()

	require.Len(t, c.Profiles, 2)
	assert.Equal(t, "TH01", c.Profiles[0].Model)
	assert.Equal(t, "B1", c.Profiles[1].Model)
}

func TestLoadDirMissing(t *testing.T) {
	c, err := LoadDir(filepath.Join(t.TempDir(), "nope"), newTestLogger())
	require.NoError(t, err)
	assert.Empty(t, c.Profiles)
}

func TestLoadDirBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte(`return 1`), 0o644))

	_, err := LoadDir(dir, newTestLogger())
	assert.Error(t, err)
}

func TestLuaValueConversion(t *testing.T) {
	vm := newScriptVM("conv")
	defer vm.close()

	def, err := vm.run(`return { list = { 1, "two", true }, map = { a = 1 }, empty = {} }`)
	require.NoError(t, err)

	got := luaToGo(def).(map[string]any)
	assert.Equal(t, []any{1.0, "two", true}, got["list"])
	assert.Equal(t, map[string]any{"a": 1.0}, got["map"])
	assert.Equal(t, map[string]any{}, got["empty"])

	assert.Equal(t, int64(3), wireValue(3.0))
	assert.Equal(t, 2.5, wireValue(2.5))
	assert.Equal(t, "x", wireValue("x"))
}
