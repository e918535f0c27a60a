//go:build !no_external

package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/devices"
)

// Operation type names accepted in operation tables.
const (
	opWrite             = "write"
	opManufacturerWrite = "manufacturer_write"
	opRead              = "read"
)

// profile builds a profile from the table a converter file returned.
func (vm *scriptVM) profile(def *lua.LTable) (*convert.Profile, error) {
	p := &convert.Profile{
		ZigbeeModel: stringList(def.RawGetString("zigbee_model")),
		Model:       str(def, "model"),
		Vendor:      str(def, "vendor"),
		Description: str(def, "description"),
		Fingerprint: str(def, "fingerprint"),
	}
	if p.Model == "" {
		return nil, errors.New("definition has no model")
	}

	var err error
	if t, ok := def.RawGetString("exposes").(*lua.LTable); ok {
		if p.Exposes, err = exposes(t); err != nil {
			return nil, fmt.Errorf("%s exposes: %w", p.Model, err)
		}
	}
	if t, ok := def.RawGetString("to_zigbee").(*lua.LTable); ok {
		for i := 1; i <= t.MaxN(); i++ {
			entry, ok := t.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("%s to_zigbee[%d]: not a table", p.Model, i)
			}
			tz, err := vm.toZigbee(entry)
			if err != nil {
				return nil, fmt.Errorf("%s to_zigbee[%d]: %w", p.Model, i, err)
			}
			p.ToZigbee = append(p.ToZigbee, tz)
		}
	}
	if t, ok := def.RawGetString("from_zigbee").(*lua.LTable); ok {
		for i := 1; i <= t.MaxN(); i++ {
			entry, ok := t.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("%s from_zigbee[%d]: not a table", p.Model, i)
			}
			fz, err := vm.fromZigbee(entry)
			if err != nil {
				return nil, fmt.Errorf("%s from_zigbee[%d]: %w", p.Model, i, err)
			}
			p.FromZigbee = append(p.FromZigbee, fz)
		}
	}
	if t, ok := def.RawGetString("configure").(*lua.LTable); ok {
		steps, err := configureSteps(t)
		if err != nil {
			return nil, fmt.Errorf("%s configure: %w", p.Model, err)
		}
		p.Configure = func(ctx context.Context, dev convert.Device, _ *slog.Logger) error {
			return runConfigure(ctx, dev, steps)
		}
	}
	return p, nil
}

func str(t *lua.LTable, key string) string {
	if v, ok := t.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return ""
}

func num(t *lua.LTable, key string) (float64, bool) {
	v, ok := t.RawGetString(key).(lua.LNumber)
	return float64(v), ok
}

func exposes(t *lua.LTable) ([]convert.Expose, error) {
	var out []convert.Expose
	for i := 1; i <= t.MaxN(); i++ {
		et, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("expose %d: not a table", i)
		}
		e := convert.Expose{
			Type:        str(et, "type"),
			Name:        str(et, "name"),
			Property:    str(et, "property"),
			Description: str(et, "description"),
			Unit:        str(et, "unit"),
			Values:      stringList(et.RawGetString("values")),
			ValueOn:     luaToGo(et.RawGetString("value_on")),
			ValueOff:    luaToGo(et.RawGetString("value_off")),
		}
		switch e.Type {
		case convert.ExposeBinary, convert.ExposeEnum, convert.ExposeNumeric, convert.ExposeClimate:
		default:
			return nil, fmt.Errorf("expose %d: unknown type %q", i, e.Type)
		}
		if e.Property == "" && e.Type != convert.ExposeClimate {
			e.Property = e.Name
		}
		if a, ok := num(et, "access"); ok {
			e.Access = int(a)
		} else {
			e.Access = convert.AccessState
		}
		if v, ok := num(et, "min"); ok {
			e.ValueMin = &v
		}
		if v, ok := num(et, "max"); ok {
			e.ValueMax = &v
		}
		if v, ok := num(et, "step"); ok {
			e.ValueStep = &v
		}
		if ft, ok := et.RawGetString("features").(*lua.LTable); ok {
			features, err := exposes(ft)
			if err != nil {
				return nil, fmt.Errorf("expose %d: %w", i, err)
			}
			e.Features = features
		}
		out = append(out, e)
	}
	return out, nil
}

// accepts reads the value spec of a to_zigbee entry: either an enum table
// of token = code pairs or an accepts table with a kind.
func accepts(entry *lua.LTable) (convert.ValueSpec, convert.EnumTable, error) {
	if et, ok := entry.RawGetString("enum").(*lua.LTable); ok {
		codes, err := enumTable(et)
		if err != nil {
			return convert.ValueSpec{}, nil, err
		}
		table := convert.EnumTable(codes)
		return table.Spec(), table, nil
	}
	at, ok := entry.RawGetString("accepts").(*lua.LTable)
	if !ok {
		return convert.ValueSpec{}, nil, nil
	}
	switch kind := str(at, "kind"); kind {
	case "bool":
		return convert.Bool(), nil, nil
	case "numeric":
		min, _ := num(at, "min")
		max, _ := num(at, "max")
		step, _ := num(at, "step")
		return convert.Numeric(min, max, step), nil, nil
	case "enum":
		return convert.Enum(stringList(at.RawGetString("values"))...), nil, nil
	case "string":
		return convert.ValueSpec{Kind: convert.KindString}, nil, nil
	default:
		return convert.ValueSpec{}, nil, fmt.Errorf("unknown accepts kind %q", kind)
	}
}

func (vm *scriptVM) toZigbee(entry *lua.LTable) (convert.ToZigbee, error) {
	tz := convert.ToZigbee{Keys: stringList(entry.RawGetString("keys"))}
	if len(tz.Keys) == 0 {
		return tz, errors.New("no keys")
	}
	spec, table, err := accepts(entry)
	if err != nil {
		return tz, err
	}
	tz.Accepts = spec
	tz.Unexposed = stringList(entry.RawGetString("unexposed"))

	if fn, ok := entry.RawGetString("set").(*lua.LFunction); ok {
		tz.ConvertSet = func(key string, value any, meta *convert.Meta) (convert.Result, error) {
			arg := value
			if table != nil {
				// Enum converters receive the wire code, like the built-in ones.
				code, _ := table.Code(value.(string))
				arg = code
			}
			rets, err := vm.call(fn, 2, key, arg, map[string]any(meta.State))
			if err != nil {
				return convert.Result{}, err
			}
			ops, err := operations(rets[0])
			if err != nil {
				return convert.Result{}, err
			}
			res := convert.Result{Operations: ops}
			if st, ok := rets[1].(map[string]any); ok {
				res.State = convert.State(st)
			} else {
				res.State = convert.State{key: value}
			}
			return res, nil
		}
	}

	if gt, ok := entry.RawGetString("get").(*lua.LTable); ok {
		read := convert.AttributeRead{Cluster: str(gt, "cluster"), Attributes: stringList(gt.RawGetString("attributes"))}
		if read.Cluster == "" || len(read.Attributes) == 0 {
			return tz, errors.New("get needs a cluster and attributes")
		}
		tz.ConvertGet = func(string, *convert.Meta) ([]convert.Operation, error) {
			return []convert.Operation{read}, nil
		}
	}
	if tz.ConvertSet == nil && tz.ConvertGet == nil {
		return tz, errors.New("neither set nor get")
	}
	return tz, nil
}

// operations converts the operation list a set function returned.
func operations(v any) ([]convert.Operation, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		// Empty Lua tables come back as maps.
		if m, isMap := v.(map[string]any); isMap && len(m) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("operations must be a list, got %T", v)
	}
	out := make([]convert.Operation, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("operation %d: not a table", i+1)
		}
		op, err := operation(m)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		out = append(out, op)
	}
	return out, nil
}

func operation(m map[string]any) (convert.Operation, error) {
	cluster, _ := m["cluster"].(string)
	if cluster == "" {
		return nil, errors.New("missing cluster")
	}
	kind, _ := m["type"].(string)
	switch kind {
	case opWrite:
		attr, _ := m["attribute"].(string)
		if attr == "" {
			return nil, errors.New("write without attribute")
		}
		return convert.AttributeWrite{Cluster: cluster, Attribute: attr, Value: wireValue(m["value"])}, nil
	case opManufacturerWrite:
		id, _ := m["attr_id"].(float64)
		typ, _ := m["data_type"].(float64)
		code, _ := m["manufacturer_code"].(float64)
		return convert.ManufacturerWrite{
			Cluster:          cluster,
			AttrID:           uint16(id),
			Type:             uint8(typ),
			Value:            wireValue(m["value"]),
			ManufacturerCode: uint16(code),
		}, nil
	case opRead:
		var attrs []string
		switch a := m["attributes"].(type) {
		case string:
			attrs = []string{a}
		case []any:
			for _, x := range a {
				if s, ok := x.(string); ok {
					attrs = append(attrs, s)
				}
			}
		}
		if len(attrs) == 0 {
			return nil, errors.New("read without attributes")
		}
		return convert.AttributeRead{Cluster: cluster, Attributes: attrs}, nil
	}
	return nil, fmt.Errorf("unknown operation type %q", kind)
}

func (vm *scriptVM) fromZigbee(entry *lua.LTable) (convert.FromZigbee, error) {
	fz := convert.FromZigbee{
		Cluster: str(entry, "cluster"),
		Types:   stringList(entry.RawGetString("types")),
	}
	if fz.Cluster == "" || len(fz.Types) == 0 {
		return fz, errors.New("needs a cluster and types")
	}
	fn, ok := entry.RawGetString("convert").(*lua.LFunction)
	if !ok {
		return fz, errors.New("no convert function")
	}
	fz.Convert = func(msg *convert.Message, meta *convert.Meta) convert.State {
		arg := map[string]any{
			"type":        msg.Type,
			"cluster":     msg.Cluster,
			"data":        msg.Data,
			"linkquality": msg.LinkQuality,
		}
		if msg.Endpoint != nil {
			arg["endpoint"] = msg.Endpoint.ID()
		}
		rets, err := vm.call(fn, 1, arg, map[string]any(meta.State))
		if err != nil {
			if meta.Logger != nil {
				meta.Logger.Warn("external converter failed", "model", meta.Profile.Model, "cluster", msg.Cluster, "err", err)
			}
			return nil
		}
		if st, ok := rets[0].(map[string]any); ok && len(st) > 0 {
			return convert.State(st)
		}
		return nil
	}
	return fz, nil
}

type reportStep struct {
	cluster, attribute string
	min, max           uint16
	change             any
}

type configureStep struct {
	endpoint  uint8
	bind      []string
	reporting []reportStep
}

func configureSteps(t *lua.LTable) ([]configureStep, error) {
	var steps []configureStep
	for i := 1; i <= t.MaxN(); i++ {
		st, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("step %d: not a table", i)
		}
		ep, ok := num(st, "endpoint")
		if !ok {
			ep = 1
		}
		step := configureStep{endpoint: uint8(ep), bind: stringList(st.RawGetString("bind"))}
		if rt, ok := st.RawGetString("reporting").(*lua.LTable); ok {
			for j := 1; j <= rt.MaxN(); j++ {
				r, ok := rt.RawGetInt(j).(*lua.LTable)
				if !ok {
					return nil, fmt.Errorf("step %d reporting %d: not a table", i, j)
				}
				min, _ := num(r, "min")
				max, _ := num(r, "max")
				rs := reportStep{cluster: str(r, "cluster"), attribute: str(r, "attribute"), min: uint16(min), max: uint16(max)}
				if c, ok := num(r, "change"); ok {
					rs.change = wireValue(c)
				}
				step.reporting = append(step.reporting, rs)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func runConfigure(ctx context.Context, dev convert.Device, steps []configureStep) error {
	for _, step := range steps {
		ep, err := dev.Endpoint(step.endpoint)
		if err != nil {
			return err
		}
		if err := devices.Bind(ctx, ep, step.bind...); err != nil {
			return err
		}
		for _, r := range step.reporting {
			if err := devices.Report(ctx, ep, r.cluster, r.attribute, r.min, r.max, r.change); err != nil {
				return err
			}
		}
	}
	return nil
}
