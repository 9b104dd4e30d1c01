package mqtt

import "strings"

// TopicPrefix is the root of every topic used by the controller.
const TopicPrefix = "graylogic"

// customCommand is the device segment of command topics that carry an
// integration-level custom payload rather than a device state.
const customCommand = "custom"

// Topics builds the topic names shared with bridges and observers.
//
//	mqtt.Topics{}.BridgeCommand("hue", "l1") // graylogic/command/hue/l1
type Topics struct{}

// BridgeCommand is where state commands for one device are published.
func (Topics) BridgeCommand(integrationID, deviceID string) string {
	return join("command", integrationID, deviceID)
}

// BridgeCustom is where custom payloads for an integration are published.
func (Topics) BridgeCustom(integrationID string) string {
	return join("command", integrationID, customCommand)
}

// BridgeState is where a bridge reports one device.
func (Topics) BridgeState(integrationID, deviceID string) string {
	return join("state", integrationID, deviceID)
}

// AllBridgeStates matches every BridgeState topic.
func (Topics) AllBridgeStates() string {
	return join("state", "+", "+")
}

// CoreAction is where executed actions of the given kind are mirrored.
func (Topics) CoreAction(kind string) string {
	return join("core", "action", kind)
}

// AllCoreActions matches every CoreAction topic.
func (Topics) AllCoreActions() string {
	return join("core", "action", "+")
}

// ActionRequest is where other services ask the controller to run an action.
func (Topics) ActionRequest() string {
	return join("request", "action")
}

// SystemStatus carries the retained online/offline status and the Last Will.
func (Topics) SystemStatus() string {
	return join("system", "status")
}

// ParseBridgeState extracts the integration and device ID from a
// BridgeState topic.
func ParseBridgeState(topic string) (integrationID, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

func join(segments ...string) string {
	return TopicPrefix + "/" + strings.Join(segments, "/")
}
