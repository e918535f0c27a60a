package convert

import (
	"context"
	"fmt"
	"log/slog"
)

// Inbound turns reports and commands into state deltas and runs profile
// event hooks.
type Inbound struct {
	logger *slog.Logger
}

// NewInbound creates an inbound translator.
func NewInbound(logger *slog.Logger) *Inbound {
	return &Inbound{logger: logger.With("component", "inbound")}
}

// Handle runs every matching fromZigbee converter of the profile in
// declaration order, merging their deltas, then the profile's OnEvent hook.
// A hook error is returned together with the delta.
func (in *Inbound) Handle(ctx context.Context, p *Profile, state State, msg *Message) (State, error) {
	meta := &Meta{Profile: p, State: state, Logger: in.logger}
	patch := State{}
	matched := 0
	for _, c := range p.FromZigbee {
		if !c.Matches(msg) {
			continue
		}
		matched++
		if delta := c.Convert(msg, meta); delta != nil {
			patch.Merge(delta)
		}
	}
	if matched == 0 {
		in.logger.Debug("no converter for message", "model", p.Model, "cluster", msg.Cluster, "type", msg.Type)
	}

	if p.OnEvent != nil {
		if err := p.OnEvent(ctx, msg); err != nil {
			return patch, fmt.Errorf("%s event hook: %w", p.Model, err)
		}
	}
	return patch, nil
}
