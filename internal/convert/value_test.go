package convert_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
)

func TestEnumTable(t *testing.T) {
	table := convert.EnumTable{"off": 0, "auto": 1, "cool": 3, "heat": 4}

	assert.Equal(t, []string{"off", "auto", "cool", "heat"}, table.Keys())

	code, ok := table.Code("COOL")
	require.True(t, ok)
	assert.Equal(t, 3, code)

	name, ok := table.Name(4)
	require.True(t, ok)
	assert.Equal(t, "heat", name)

	_, ok = table.Name(42)
	assert.False(t, ok)
}

func TestValueSpecNormalize(t *testing.T) {
	tests := []struct {
		name    string
		spec    convert.ValueSpec
		in      any
		want    any
		wantErr error
	}{
		{"bool", convert.Bool(), false, false, nil},
		{"bool from string", convert.Bool(), "true", nil, convert.ErrTypeMismatch},
		{"enum folds case", convert.Enum("on", "off"), "ON", "on", nil},
		{"enum rejects unknown", convert.Enum("on", "off"), "toggle", nil, convert.ErrInvalidValue},
		{"enum rejects bool", convert.Enum("on", "off"), true, nil, convert.ErrTypeMismatch},
		{"numeric int", convert.Numeric(16, 30, 0), 20, 20.0, nil},
		{"numeric json", convert.Numeric(16, 30, 0), json.Number("29.5"), 29.5, nil},
		{"numeric below", convert.Numeric(16, 30, 0), 15.5, nil, convert.ErrInvalidValue},
		{"numeric string", convert.Numeric(16, 30, 0), "20", nil, convert.ErrTypeMismatch},
		{"numeric on step", convert.Numeric(16, 30, 0.5), 20.5, 20.5, nil},
		{"numeric off step", convert.Numeric(16, 30, 0.5), 20.3, nil, convert.ErrInvalidValue},
		{"numeric step from min", convert.Numeric(0.25, 10, 0.5), 1.75, 1.75, nil},
		{"numeric NaN", convert.Numeric(16, 30, 0), math.NaN(), nil, convert.ErrInvalidValue},
		{"numeric NaN with step", convert.Numeric(16, 30, 0.5), math.NaN(), nil, convert.ErrInvalidValue},
		{"any passes through", convert.ValueSpec{}, []int{1}, []int{1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Normalize("key", tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidValueNamesStep(t *testing.T) {
	_, err := convert.Numeric(16, 30, 0.5).Normalize("occupied_heating_setpoint", 20.3)
	var iv *convert.InvalidValueError
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, 0.5, iv.Step)
	assert.Contains(t, err.Error(), "step 0.5")
}

func TestProfileLookups(t *testing.T) {
	p := &convert.Profile{
		ToZigbee: []convert.ToZigbee{{Keys: []string{"a", "b"}}},
		Exposes: []convert.Expose{
			{Type: convert.ExposeClimate, Features: []convert.Expose{
				convert.NumericExpose("local_temperature", convert.AccessState|convert.AccessGet),
			}},
			convert.Binary("quiet_fan", convert.AccessState|convert.AccessSet, true, false),
		},
	}

	_, ok := p.Converter("b")
	assert.True(t, ok)
	_, ok = p.Converter("c")
	assert.False(t, ok)

	e, ok := p.Expose("local_temperature")
	require.True(t, ok)
	assert.False(t, e.Settable())

	e, ok = p.Expose("quiet_fan")
	require.True(t, ok)
	assert.True(t, e.Settable())
}

func TestManufacturerWriteValidate(t *testing.T) {
	assert.ErrorIs(t, convert.ManufacturerWrite{Cluster: "hvacThermostat", AttrID: 1}.Validate(), convert.ErrMissingManufacturerCode)
	assert.NoError(t, convert.ManufacturerWrite{Cluster: "hvacThermostat", AttrID: 1, ManufacturerCode: 1}.Validate())
}
