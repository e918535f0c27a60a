package devices_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/convert/converttest"
	"github.com/niracler/zigbee-herdsman-converters/internal/devices"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

func TestBuiltinCatalogValidates(t *testing.T) {
	cat, err := devices.NewCatalog(newTestLogger(), devices.Builtin()...)
	require.NoError(t, err)
	assert.NoError(t, cat.Validate())
	assert.Len(t, cat.Profiles(), 2)
}

func TestCatalogLookup(t *testing.T) {
	fp := &convert.Profile{
		Model:       "FP-1",
		Fingerprint: `Manufacturer == "Acme" && Model startsWith "FP"`,
	}
	cat, err := devices.NewCatalog(newTestLogger(), append(devices.Builtin(), fp)...)
	require.NoError(t, err)

	p, ok := cat.Lookup("Adapter Zigbee FUJITSU", "")
	require.True(t, ok)
	assert.Equal(t, "GW003-AS-IN-TE-FC", p.Model)

	p, ok = cat.Lookup("TS0215", "_TZ3000_abc")
	require.True(t, ok)
	assert.Equal(t, "S9ZGBRC01", p.Model)

	p, ok = cat.Lookup("FP-200", "Acme")
	require.True(t, ok)
	assert.Equal(t, "FP-1", p.Model)

	_, ok = cat.Lookup("FP-200", "Other")
	assert.False(t, ok)

	p, ok = cat.ByModel("S9ZGBRC01")
	require.True(t, ok)
	assert.Equal(t, "Smart9", p.Vendor)
}

func TestCatalogRejectsBadProfiles(t *testing.T) {
	_, err := devices.NewCatalog(newTestLogger(), devices.AtlanticNaviclim(), devices.AtlanticNaviclim())
	assert.ErrorContains(t, err, "claimed by both")

	_, err = devices.NewCatalog(newTestLogger(), &convert.Profile{Model: "X", Fingerprint: "Model +"})
	assert.Error(t, err)

	_, err = devices.NewCatalog(newTestLogger(), &convert.Profile{Model: "X"})
	assert.Error(t, err)
}

func TestValidateProfileFindsInconsistencies(t *testing.T) {
	set := func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		return convert.Result{
			Operations: []convert.Operation{convert.ManufacturerWrite{Cluster: "hvacThermostat", AttrID: 0x4000, Type: zcl.TypeBool, Value: v}},
			State:      convert.State{key: v},
		}, nil
	}
	p := &convert.Profile{
		ZigbeeModel: []string{"bad"},
		Model:       "BAD-1",
		ToZigbee: []convert.ToZigbee{
			{Keys: []string{"mode"}, Accepts: convert.Enum("a", "b"), ConvertSet: set},
			{Keys: []string{"mode"}, Accepts: convert.Bool(), ConvertSet: set},
		},
		Exposes: []convert.Expose{
			convert.EnumExpose("mode", convert.AccessAll, []string{"a", "c"}),
			convert.Binary("missing", convert.AccessAll, true, false),
		},
	}
	err := devices.ValidateProfile(p)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `key "mode" handled by more than one converter`)
	assert.Contains(t, msg, `value "c" not accepted`)
	assert.Contains(t, msg, `settable expose "missing" has no converter`)
	assert.ErrorIs(t, err, convert.ErrMissingManufacturerCode)
}

func TestValidateProfileChecksBothDirections(t *testing.T) {
	set := func(key string, v any, _ *convert.Meta) (convert.Result, error) {
		return convert.Result{
			Operations: []convert.Operation{convert.AttributeWrite{Cluster: "hvacThermostat", Attribute: "systemMode", Value: 0}},
			State:      convert.State{key: v},
		}, nil
	}
	p := &convert.Profile{
		ZigbeeModel: []string{"wide"},
		Model:       "WIDE-1",
		ToZigbee: []convert.ToZigbee{
			{Keys: []string{"mode"}, Accepts: convert.Enum("a", "b", "c"), ConvertSet: set},
			{Keys: []string{"preset"}, Accepts: convert.Enum("x", "none"), Unexposed: []string{"none"}, ConvertSet: set},
			{Keys: []string{"setpoint"}, Accepts: convert.Numeric(16, 30, 1), ConvertSet: set},
		},
		Exposes: []convert.Expose{
			convert.EnumExpose("mode", convert.AccessAll, []string{"a", "b"}),
			convert.EnumExpose("preset", convert.AccessAll, []string{"x"}),
			convert.NumericExpose("setpoint", convert.AccessAll).WithRange(16, 30, 0.5),
		},
	}
	err := devices.ValidateProfile(p)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `converter "mode" accepts "c" missing from its expose`)
	assert.NotContains(t, msg, `"none"`)
	assert.Contains(t, msg, `expose "setpoint" step 0.5 differs from converter step 1`)
}

func TestCatalogConfigure(t *testing.T) {
	cat, err := devices.NewCatalog(newTestLogger(), devices.Builtin()...)
	require.NoError(t, err)
	p, _ := cat.ByModel("S9ZGBRC01")

	dev := converttest.NewDevice("0xa4c1380000000001", 1)
	require.NoError(t, cat.Configure(context.Background(), p, dev))
	assert.Len(t, dev.Endpoints[1].Calls(), 1)

	// Profiles without a configure routine are a no-op.
	require.NoError(t, cat.Configure(context.Background(), &convert.Profile{Model: "plain"}, dev))
}

func TestLoadClusterDir(t *testing.T) {
	dir := t.TempDir()
	overlay := `{"clusters": [{
		"id": 513, "key": "hvacThermostat",
		"attributes": [{"id": 17011, "key": "atlanticLouverPosition", "type": 48, "manufacturer_code": 4675}]
	}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atlantic.json"), []byte(overlay), 0o644))

	r := zcl.NewRegistry(newTestLogger())
	n, err := devices.LoadClusterDir(dir, r, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, a, err := r.ResolveAttribute("hvacThermostat", "atlanticLouverPosition")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), c.ID)
	assert.Equal(t, uint16(17011), a.ID)
	assert.Equal(t, zcl.ManufacturerAtlanticGroup, a.ManufacturerCode)

	n, err = devices.LoadClusterDir(filepath.Join(dir, "missing"), r, newTestLogger())
	require.NoError(t, err)
	assert.Zero(t, n)
}
