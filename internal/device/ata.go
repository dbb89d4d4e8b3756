package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Air-to-air operation modes on the wire.
const (
	AtaModeHeat = 1
	AtaModeDry  = 2
	AtaModeCool = 3
	AtaModeFan  = 7
	AtaModeAuto = 8
)

// FanSpeedAuto is the fan speed sentinel for automatic fan control. It is
// distinct from the discrete speeds, which are 1..NumberOfFanSpeeds.
const FanSpeedAuto = 0

// ataState is the raw air-to-air runtime blob. Required fields are
// pointers so a null or missing value is detectable at the
// deserialization boundary.
type ataState struct {
	Power              *bool    `json:"Power"`
	InStandbyMode      bool     `json:"InStandbyMode"`
	RoomTemperature    *float64 `json:"RoomTemperature"`
	SetTemperature     *float64 `json:"SetTemperature"`
	OutdoorTemperature float64  `json:"OutdoorTemperature"`
	OperationMode      *int     `json:"OperationMode"`
	SetFanSpeed        *int     `json:"SetFanSpeed"`
	ActualFanSpeed     int      `json:"ActualFanSpeed"`
	VaneHorizontal     *int     `json:"VaneHorizontalDirection"`
	VaneVertical       *int     `json:"VaneVerticalDirection"`

	ProhibitPower          bool `json:"ProhibitPower"`
	ProhibitSetTemperature bool `json:"ProhibitSetTemperature"`
	ProhibitOperationMode  bool `json:"ProhibitOperationMode"`

	ErrorCode int  `json:"ErrorCode"`
	HasError  bool `json:"HasError"`
	Offline   bool `json:"Offline"`
}

// AtaSnapshot is the normalized air-to-air state. It is a plain value
// type: two snapshots are "the same state" exactly when they are deeply
// equal.
type AtaSnapshot struct {
	Power         bool    `json:"power"`
	InStandby     bool    `json:"in_standby"`
	OperationMode int     `json:"operation_mode"`
	RoomTemp      float64 `json:"room_temperature"`
	SetTemp       float64 `json:"set_temperature"`
	OutdoorTemp   float64 `json:"outdoor_temperature"`

	// FanSpeed is FanSpeedAuto (0) or a discrete speed 1..N.
	FanSpeed       int `json:"fan_speed"`
	ActualFanSpeed int `json:"actual_fan_speed"`

	VaneHorizontal int `json:"vane_horizontal"`
	VaneVertical   int `json:"vane_vertical"`

	// Swing reports the horizontal=12 / vertical=7 sentinel pair.
	Swing bool `json:"swing"`

	ProhibitPower          bool `json:"prohibit_power"`
	ProhibitSetTemperature bool `json:"prohibit_set_temperature"`
	ProhibitOperationMode  bool `json:"prohibit_operation_mode"`

	ErrorCode int  `json:"error_code"`
	HasError  bool `json:"has_error"`
	Offline   bool `json:"offline"`
}

// ParseAta validates and normalizes a raw air-to-air runtime blob.
//
// Returns:
//   - AtaSnapshot: Normalized state
//   - error: ErrIncompleteState when any required field is null or
//     missing, otherwise the JSON parse failure
func ParseAta(raw json.RawMessage) (AtaSnapshot, error) {
	var st ataState
	if err := json.Unmarshal(raw, &st); err != nil {
		return AtaSnapshot{}, fmt.Errorf("device: parsing ata state: %w", err)
	}

	if missing := missingAtaFields(st); len(missing) > 0 {
		return AtaSnapshot{}, fmt.Errorf("%w: ata fields %s", ErrIncompleteState, strings.Join(missing, ", "))
	}

	power := false
	if st.Power != nil {
		power = *st.Power
	}

	return AtaSnapshot{
		Power:                  power,
		InStandby:              st.InStandbyMode,
		OperationMode:          *st.OperationMode,
		RoomTemp:               *st.RoomTemperature,
		SetTemp:                *st.SetTemperature,
		OutdoorTemp:            st.OutdoorTemperature,
		FanSpeed:               *st.SetFanSpeed,
		ActualFanSpeed:         st.ActualFanSpeed,
		VaneHorizontal:         *st.VaneHorizontal,
		VaneVertical:           *st.VaneVertical,
		Swing:                  *st.VaneHorizontal == VaneHorizontalSwing && *st.VaneVertical == VaneVerticalSwing,
		ProhibitPower:          st.ProhibitPower,
		ProhibitSetTemperature: st.ProhibitSetTemperature,
		ProhibitOperationMode:  st.ProhibitOperationMode,
		ErrorCode:              st.ErrorCode,
		HasError:               st.HasError,
		Offline:                st.Offline,
	}, nil
}

// missingAtaFields lists the required fields absent from a raw blob.
func missingAtaFields(st ataState) []string {
	var missing []string
	if st.RoomTemperature == nil {
		missing = append(missing, "RoomTemperature")
	}
	if st.SetTemperature == nil {
		missing = append(missing, "SetTemperature")
	}
	if st.OperationMode == nil {
		missing = append(missing, "OperationMode")
	}
	if st.SetFanSpeed == nil {
		missing = append(missing, "SetFanSpeed")
	}
	if st.VaneHorizontal == nil {
		missing = append(missing, "VaneHorizontalDirection")
	}
	if st.VaneVertical == nil {
		missing = append(missing, "VaneVerticalDirection")
	}
	return missing
}

// FanAuto reports whether the fan is under automatic control.
func (s AtaSnapshot) FanAuto() bool {
	return s.FanSpeed == FanSpeedAuto
}

// AtaCommand is the SetAta request body. EffectiveFlags selects which
// fields the server applies; everything else is carried for context.
type AtaCommand struct {
	DeviceID       int     `json:"DeviceID"`
	Power          bool    `json:"Power"`
	OperationMode  int     `json:"OperationMode"`
	SetTemperature float64 `json:"SetTemperature"`
	SetFanSpeed    int     `json:"SetFanSpeed"`
	VaneHorizontal int     `json:"VaneHorizontal"`
	VaneVertical   int     `json:"VaneVertical"`

	ProhibitPower          bool `json:"ProhibitPower"`
	ProhibitSetTemperature bool `json:"ProhibitSetTemperature"`
	ProhibitOperationMode  bool `json:"ProhibitOperationMode"`

	EffectiveFlags    uint64 `json:"EffectiveFlags"`
	HasPendingCommand bool   `json:"HasPendingCommand"`
}

// NewAtaCommand builds a command from a snapshot into which the caller has
// already written the mutated fields, plus the combined effective flags of
// those mutations.
func NewAtaCommand(deviceID int, s AtaSnapshot, flags uint64) *AtaCommand {
	return &AtaCommand{
		DeviceID:               deviceID,
		Power:                  s.Power,
		OperationMode:          s.OperationMode,
		SetTemperature:         s.SetTemp,
		SetFanSpeed:            s.FanSpeed,
		VaneHorizontal:         s.VaneHorizontal,
		VaneVertical:           s.VaneVertical,
		ProhibitPower:          s.ProhibitPower,
		ProhibitSetTemperature: s.ProhibitSetTemperature,
		ProhibitOperationMode:  s.ProhibitOperationMode,
		EffectiveFlags:         flags,
	}
}

// Family implements Command.
func (c *AtaCommand) Family() Family { return FamilyAirToAir }

// TargetDevice implements Command.
func (c *AtaCommand) TargetDevice() int { return c.DeviceID }

// Flags implements Command.
func (c *AtaCommand) Flags() uint64 { return c.EffectiveFlags }

// MarkPending implements Command.
func (c *AtaCommand) MarkPending() { c.HasPendingCommand = true }
