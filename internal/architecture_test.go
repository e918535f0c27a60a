package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

func TestArchitecture(t *testing.T) {
	core := archunit.Packages("core", []string{".../internal/convert", ".../internal/zcl/..."})
	profiles := archunit.Packages("profiles", []string{".../internal/devices"})
	transport := archunit.Packages("transport", []string{".../internal/ncp", ".../internal/store"})
	surfaces := archunit.Packages("surfaces", []string{".../internal/mqtt", ".../internal/web", ".../internal/coordinator"})

	// The translation core knows nothing of transports, storage or profiles.
	if err := core.ShouldNotReferLayers(transport); err != nil {
		t.Errorf("Architecture violation: core depends on transport: %v", err)
	}
	if err := core.ShouldNotReferLayers(surfaces); err != nil {
		t.Errorf("Architecture violation: core depends on surfaces: %v", err)
	}
	if err := core.ShouldNotReferLayers(profiles); err != nil {
		t.Errorf("Architecture violation: core depends on profiles: %v", err)
	}

	// Profiles reach devices only through convert.Endpoint.
	if err := profiles.ShouldNotReferLayers(transport); err != nil {
		t.Errorf("Architecture violation: profiles depend on transport: %v", err)
	}
	if err := profiles.ShouldNotReferLayers(surfaces); err != nil {
		t.Errorf("Architecture violation: profiles depend on surfaces: %v", err)
	}
}

func TestProfilePackages(t *testing.T) {
	for _, pattern := range []string{".../internal/devices", ".../internal/external"} {
		if len(archunit.Packages("profiles", []string{pattern}).Packages()) == 0 {
			t.Errorf("no package matches %s", pattern)
		}
	}
}
