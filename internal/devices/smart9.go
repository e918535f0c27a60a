package devices

import (
	"context"
	"log/slog"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

const clusterIDIASACE uint16 = 0x0501

// acknowledgeArm answers arm commands with a default response. The arm
// command has a cluster-specific response, so the stack sends no default
// response on its own and the remote keeps repeating the command.
func acknowledgeArm(ctx context.Context, msg *convert.Message) error {
	if msg.Type != "commandArm" || msg.Cluster != "ssIasAce" {
		return nil
	}
	return msg.Endpoint.DefaultResponse(ctx, clusterIDIASACE, 0x00, zcl.ZCLStatusSuccess, msg.TSN)
}

// Smart9Remote is the Smart9 S9ZGBRC01 alarm remote.
func Smart9Remote() *convert.Profile {
	return &convert.Profile{
		ZigbeeModel: []string{"TS0215"},
		Model:       "S9ZGBRC01",
		Vendor:      "Smart9",
		Description: "Smart remote controller",
		FromZigbee:  []convert.FromZigbee{CommandArm, CommandEmergency, Battery},
		Exposes: []convert.Expose{
			BatteryExpose(),
			ActionExpose("disarm", "arm_day_zones", "arm_night_zones", "arm_all_zones", "exit_delay", "emergency"),
		},
		Configure: func(ctx context.Context, dev convert.Device, _ *slog.Logger) error {
			ep, err := dev.Endpoint(1)
			if err != nil {
				return err
			}
			return Bind(ctx, ep, "genPowerCfg")
		},
		OnEvent: acknowledgeArm,
	}
}
