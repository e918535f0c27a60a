// Package devices holds the built-in device profiles, the converters they
// share and the catalog that matches joined devices to profiles.
package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// Fingerprint is the environment fingerprint expressions are evaluated
// against, e.g. `Manufacturer == "Atlantic" && Model startsWith "Adapter"`.
type Fingerprint struct {
	Model        string
	Manufacturer string
}

type fingerprintEntry struct {
	program *vm.Program
	profile *convert.Profile
}

// Catalog indexes profiles by Zigbee model ID and fingerprint. It is
// immutable after NewCatalog.
type Catalog struct {
	profiles     []*convert.Profile
	byModel      map[string]*convert.Profile
	fingerprints []fingerprintEntry
	logger       *slog.Logger
}

// Builtin returns the built-in profiles.
func Builtin() []*convert.Profile {
	return []*convert.Profile{
		AtlanticNaviclim(),
		Smart9Remote(),
	}
}

// NewCatalog indexes profiles. Duplicate model IDs and fingerprints that do
// not compile are errors.
func NewCatalog(logger *slog.Logger, profiles ...*convert.Profile) (*Catalog, error) {
	c := &Catalog{
		byModel: make(map[string]*convert.Profile),
		logger:  logger.With("component", "catalog"),
	}
	for _, p := range profiles {
		if len(p.ZigbeeModel) == 0 && p.Fingerprint == "" {
			return nil, fmt.Errorf("profile %s: no zigbee model and no fingerprint", p.Model)
		}
		for _, zm := range p.ZigbeeModel {
			if prev, ok := c.byModel[zm]; ok {
				return nil, fmt.Errorf("zigbee model %q claimed by both %s and %s", zm, prev.Model, p.Model)
			}
			c.byModel[zm] = p
		}
		if p.Fingerprint != "" {
			prog, err := expr.Compile(p.Fingerprint, expr.Env(Fingerprint{}), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("profile %s fingerprint: %w", p.Model, err)
			}
			c.fingerprints = append(c.fingerprints, fingerprintEntry{program: prog, profile: p})
		}
		c.profiles = append(c.profiles, p)
	}
	c.logger.Info("device catalog loaded", "profiles", len(c.profiles))
	return c, nil
}

// Lookup returns the profile for a device's model ID, falling back to
// fingerprint expressions in registration order.
func (c *Catalog) Lookup(model, manufacturer string) (*convert.Profile, bool) {
	if p, ok := c.byModel[model]; ok {
		return p, true
	}
	env := Fingerprint{Model: model, Manufacturer: manufacturer}
	for _, fp := range c.fingerprints {
		out, err := expr.Run(fp.program, env)
		if err != nil {
			c.logger.Warn("fingerprint evaluation failed", "profile", fp.profile.Model, "err", err)
			continue
		}
		if matched, _ := out.(bool); matched {
			return fp.profile, true
		}
	}
	return nil, false
}

// ByModel returns the profile with the given vendor model name.
func (c *Catalog) ByModel(model string) (*convert.Profile, bool) {
	for _, p := range c.profiles {
		if p.Model == model {
			return p, true
		}
	}
	return nil, false
}

// Profiles returns every profile in registration order.
func (c *Catalog) Profiles() []*convert.Profile {
	return slices.Clone(c.profiles)
}

// Configure runs the profile's configure routine for dev. Errors surface
// unchanged.
func (c *Catalog) Configure(ctx context.Context, p *convert.Profile, dev convert.Device) error {
	if p.Configure == nil {
		return nil
	}
	c.logger.Info("configuring device", "ieee", dev.IEEE(), "model", p.Model)
	return p.Configure(ctx, dev, c.logger)
}

// Validate checks every profile for internal consistency: unique converter
// keys, settable exposes backed by converters, enum exposes within the
// converter's accepted values, numeric ranges matching, and manufacturer
// writes carrying a code for every accepted value.
func (c *Catalog) Validate() error {
	var errs []error
	for _, p := range c.profiles {
		if err := ValidateProfile(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateProfile checks a single profile; see Catalog.Validate.
func ValidateProfile(p *convert.Profile) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{p.Model}, args...)...))
	}

	seen := map[string]bool{}
	for _, tz := range p.ToZigbee {
		for _, k := range tz.Keys {
			if seen[k] {
				fail("key %q handled by more than one converter", k)
			}
			seen[k] = true
		}
	}

	for _, e := range flatten(p.Exposes) {
		if !e.Settable() {
			continue
		}
		tz, ok := p.Converter(e.Property)
		if !ok || tz.ConvertSet == nil {
			fail("settable expose %q has no converter", e.Property)
			continue
		}
		switch e.Type {
		case convert.ExposeEnum:
			for _, v := range e.Values {
				if !slices.Contains(tz.Accepts.Values, v) {
					fail("expose %q value %q not accepted by its converter", e.Property, v)
				}
			}
			for _, v := range tz.Accepts.Values {
				if !slices.Contains(e.Values, v) && !slices.Contains(tz.Unexposed, v) {
					fail("converter %q accepts %q missing from its expose", e.Property, v)
				}
			}
		case convert.ExposeNumeric:
			if e.ValueMin != nil && e.ValueMax != nil &&
				(tz.Accepts.Kind != convert.KindNumeric || tz.Accepts.Min != *e.ValueMin || tz.Accepts.Max != *e.ValueMax) {
				fail("expose %q range [%g, %g] differs from converter", e.Property, *e.ValueMin, *e.ValueMax)
			}
			if e.ValueStep != nil && tz.Accepts.Step != *e.ValueStep {
				fail("expose %q step %g differs from converter step %g", e.Property, *e.ValueStep, tz.Accepts.Step)
			}
		case convert.ExposeBinary:
			if tz.Accepts.Kind != convert.KindBool {
				fail("binary expose %q backed by a %s converter", e.Property, tz.Accepts.Kind)
			}
		}
	}

	for _, tz := range p.ToZigbee {
		if tz.ConvertSet == nil {
			continue
		}
		for _, sample := range samples(tz.Accepts) {
			res, err := tz.ConvertSet(tz.Keys[0], sample, &convert.Meta{Profile: p})
			if err != nil {
				fail("converter %q rejects accepted value %v: %v", tz.Keys[0], sample, err)
				continue
			}
			for _, op := range res.Operations {
				if mw, ok := op.(convert.ManufacturerWrite); ok {
					if err := mw.Validate(); err != nil {
						fail("%w", err)
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func flatten(exposes []convert.Expose) []convert.Expose {
	var out []convert.Expose
	for _, e := range exposes {
		if e.Property != "" {
			out = append(out, e)
		}
		out = append(out, flatten(e.Features)...)
	}
	return out
}

// samples returns representative accepted values for a spec.
func samples(s convert.ValueSpec) []any {
	switch s.Kind {
	case convert.KindBool:
		return []any{true, false}
	case convert.KindEnum:
		out := make([]any, len(s.Values))
		for i, v := range s.Values {
			out[i] = v
		}
		return out
	case convert.KindNumeric:
		return []any{s.Min, s.Max}
	}
	return nil
}

// clusterFile is the JSON structure of a cluster overlay file.
type clusterFile struct {
	Clusters []zcl.ClusterDef `json:"clusters"`
}

// LoadClusterDir reads all *.json files from dir and registers their cluster
// definitions, merging into existing clusters. A missing or empty directory
// is not an error.
func LoadClusterDir(dir string, registry *zcl.Registry, logger *slog.Logger) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("glob clusters dir: %w", err)
	}
	sort.Strings(matches)

	count := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return count, fmt.Errorf("read %s: %w", path, err)
		}
		var cf clusterFile
		if err := json.Unmarshal(data, &cf); err != nil {
			return count, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, c := range cf.Clusters {
			registry.Register(c)
		}
		count += len(cf.Clusters)
		logger.Info("loaded cluster file", "path", filepath.Base(path), "clusters", len(cf.Clusters))
	}
	return count, nil
}
