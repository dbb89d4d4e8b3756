package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skra72/melcloudd/internal/device"
)

// DefaultPrefix is the topic prefix used when the configuration leaves
// it empty.
const DefaultPrefix = "melcloudd"

// Topics builds melcloudd topic names. Using these helpers keeps the
// naming consistent between the bridge, the LWT and external consumers.
//
//	topics := mqtt.NewTopics("")
//	topics.DeviceState("home", device.FamilyAirToAir, 1001)
//	// Returns: "melcloudd/home/ata/1001/state"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder. An empty prefix selects
// DefaultPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{prefix: prefix}
}

// DeviceInfo returns the retained identity topic for a device.
//
// Example: melcloudd/home/ata/1001/info
func (t Topics) DeviceInfo(account string, family device.Family, deviceID int) string {
	return fmt.Sprintf("%s/%s/%s/%d/info", t.prefix, account, family, deviceID)
}

// DeviceState returns the retained state topic for a device.
//
// Example: melcloudd/home/ata/1001/state
func (t Topics) DeviceState(account string, family device.Family, deviceID int) string {
	return fmt.Sprintf("%s/%s/%s/%d/state", t.prefix, account, family, deviceID)
}

// DeviceSet returns the command intake topic for a device.
//
// Example: melcloudd/home/ata/1001/set
func (t Topics) DeviceSet(account string, family device.Family, deviceID int) string {
	return fmt.Sprintf("%s/%s/%s/%d/set", t.prefix, account, family, deviceID)
}

// SetPattern returns the wildcard subscription matching every device's
// set topic under an account.
//
// Example: melcloudd/home/+/+/set
func (t Topics) SetPattern(account string) string {
	return fmt.Sprintf("%s/%s/+/+/set", t.prefix, account)
}

// AccountEvent returns the topic for account-scoped lifecycle events.
//
// Example: melcloudd/home/event/error
func (t Topics) AccountEvent(account, kind string) string {
	return fmt.Sprintf("%s/%s/event/%s", t.prefix, account, kind)
}

// SystemStatus returns the daemon status topic carrying the LWT.
//
// Example: melcloudd/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// ParseSet extracts the account, family and device id from a set topic.
//
// Returns:
//   - account, family, deviceID: Parsed topic segments
//   - error: ErrInvalidTopic for anything that is not a set topic under
//     this prefix
func (t Topics) ParseSet(topic string) (string, device.Family, int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != t.prefix || parts[4] != "set" {
		return "", 0, 0, fmt.Errorf("%w: %q is not a set topic", ErrInvalidTopic, topic)
	}

	var family device.Family
	switch parts[2] {
	case "ata":
		family = device.FamilyAirToAir
	case "atw":
		family = device.FamilyAirToWater
	case "erv":
		family = device.FamilyEnergyRecovery
	default:
		return "", 0, 0, fmt.Errorf("%w: unknown family segment %q", ErrInvalidTopic, parts[2])
	}

	deviceID, err := strconv.Atoi(parts[3])
	if err != nil || deviceID <= 0 {
		return "", 0, 0, fmt.Errorf("%w: bad device id segment %q", ErrInvalidTopic, parts[3])
	}

	return parts[1], family, deviceID, nil
}
