package coordinator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/niracler/zigbee-herdsman-converters/internal/convert"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
)

// clusterKey names a cluster by its registry key, or "0xXXXX" when unknown.
func clusterKey(def *zcl.ClusterDef, id uint16) string {
	if def != nil && def.Key != "" {
		return def.Key
	}
	return fmt.Sprintf("0x%04X", id)
}

// attributeKey names an attribute by its key. Attributes missing from the
// registry are keyed by their decimal ID.
func attributeKey(def *zcl.ClusterDef, id uint16) string {
	if def != nil {
		if attr := def.FindAttribute(id); attr != nil && attr.Key != "" {
			return attr.Key
		}
	}
	return strconv.Itoa(int(id))
}

// commandType builds the message type of a cluster command: "arm" becomes
// "commandArm".
func commandType(key string) string {
	if key == "" {
		return "command"
	}
	return "command" + strings.ToUpper(key[:1]) + key[1:]
}

func (c *Coordinator) reportMessage(ep convert.Endpoint, evt ncp.AttributeReportEvent) *convert.Message {
	def := c.registry.Get(evt.ClusterID)
	data := make(map[string]any, len(evt.Records))
	for _, r := range evt.Records {
		data[attributeKey(def, r.ID)] = r.Value
	}
	return &convert.Message{
		Type:        convert.TypeAttributeReport,
		Cluster:     clusterKey(def, evt.ClusterID),
		Data:        data,
		Endpoint:    ep,
		TSN:         evt.TSN,
		LinkQuality: evt.LQI,
	}
}

// readResponseMessage keeps only the attributes read successfully.
func (c *Coordinator) readResponseMessage(ep convert.Endpoint, res convert.ReadResult) *convert.Message {
	def := c.registry.Get(res.ClusterID)
	data := make(map[string]any, len(res.Statuses))
	for _, st := range res.Statuses {
		if st.Status != zcl.ZCLStatusSuccess {
			continue
		}
		data[attributeKey(def, st.ID)] = st.Value
	}
	return &convert.Message{
		Type:     convert.TypeReadResponse,
		Cluster:  clusterKey(def, res.ClusterID),
		Data:     data,
		Endpoint: ep,
	}
}

// commandMessage decodes a cluster command against the registry. It reports
// false for commands the registry does not describe.
func (c *Coordinator) commandMessage(ep convert.Endpoint, evt ncp.ClusterCommandEvent) (*convert.Message, bool) {
	def := c.registry.Get(evt.ClusterID)
	if def == nil {
		return nil, false
	}
	dir := zcl.DirectionToServer
	if evt.ServerToClient {
		dir = zcl.DirectionToClient
	}
	cmd := def.FindCommand(evt.CommandID, dir)
	if cmd == nil {
		return nil, false
	}
	data, err := cmd.DecodeCommand(evt.Payload)
	if err != nil {
		c.logger.Warn("decode command", "cluster", def.Key, "cmd", cmd.Key, "err", err)
		return nil, false
	}
	return &convert.Message{
		Type:        commandType(cmd.Key),
		Cluster:     clusterKey(def, evt.ClusterID),
		Data:        data,
		Endpoint:    ep,
		TSN:         evt.TSN,
		LinkQuality: evt.LQI,
	}, true
}
