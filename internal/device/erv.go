package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Energy-recovery ventilation modes on the wire.
const (
	ErvModeLossnay = 0
	ErvModeBypass  = 1
	ErvModeAuto    = 2
)

// Fallback setpoints applied when an ERV unit reports null temperature
// targets. Lossnay units without a heater leave them unset.
const (
	ervDefaultSetTemperature = 20.0
	ervDefaultCoolingSetTemp = 23.0
	ervDefaultHeatingSetTemp = 21.0
)

// ervState is the raw energy-recovery runtime blob.
type ervState struct {
	Power              *bool    `json:"Power"`
	RoomTemperature    *float64 `json:"RoomTemperature"`
	SupplyTemperature  *float64 `json:"SupplyTemperature"`
	OutdoorTemperature *float64 `json:"OutdoorTemperature"`
	OperationMode      *int     `json:"OperationMode"`
	VentilationMode    *int     `json:"VentilationMode"`
	SetFanSpeed           *int    `json:"SetFanSpeed"`
	ActualSupplyFanSpeed  int     `json:"ActualSupplyFanSpeed"`
	ActualExhaustFanSpeed int     `json:"ActualExhaustFanSpeed"`

	SetTemperature               *float64 `json:"SetTemperature"`
	DefaultCoolingSetTemperature *float64 `json:"DefaultCoolingSetTemperature"`
	DefaultHeatingSetTemperature *float64 `json:"DefaultHeatingSetTemperature"`

	CoreMaintenanceRequired   bool `json:"CoreMaintenanceRequired"`
	FilterMaintenanceRequired bool `json:"FilterMaintenanceRequired"`

	ErrorCode int   `json:"ErrorCode"`
	HasError  bool  `json:"HasError"`
	Offline   *bool `json:"Offline"`
}

// ErvSnapshot is the normalized energy-recovery state.
type ErvSnapshot struct {
	Power           bool    `json:"power"`
	OperationMode   int     `json:"operation_mode"`
	VentilationMode int     `json:"ventilation_mode"`
	RoomTemp        float64 `json:"room_temperature"`
	SupplyTemp      float64 `json:"supply_temperature"`
	OutdoorTemp     float64 `json:"outdoor_temperature"`

	// FanSpeed is FanSpeedAuto (0) or a discrete speed 1..N.
	FanSpeed              int `json:"fan_speed"`
	ActualSupplyFanSpeed  int `json:"actual_supply_fan_speed"`
	ActualExhaustFanSpeed int `json:"actual_exhaust_fan_speed"`

	SetTemp        float64 `json:"set_temperature"`
	CoolingSetTemp float64 `json:"cooling_set_temperature"`
	HeatingSetTemp float64 `json:"heating_set_temperature"`

	CoreMaintenance   bool `json:"core_maintenance_required"`
	FilterMaintenance bool `json:"filter_maintenance_required"`

	ErrorCode int  `json:"error_code"`
	HasError  bool `json:"has_error"`
	Offline   bool `json:"offline"`
}

// ParseErv validates and normalizes a raw energy-recovery runtime blob.
// Null setpoints fall back to fixed defaults rather than failing, since
// heater-less Lossnay units never report them.
//
// Returns:
//   - ErvSnapshot: Normalized state
//   - error: ErrIncompleteState when any required field is null or
//     missing, otherwise the JSON parse failure
func ParseErv(raw json.RawMessage) (ErvSnapshot, error) {
	var st ervState
	if err := json.Unmarshal(raw, &st); err != nil {
		return ErvSnapshot{}, fmt.Errorf("device: parsing erv state: %w", err)
	}

	if missing := missingErvFields(st); len(missing) > 0 {
		return ErvSnapshot{}, fmt.Errorf("%w: erv fields %s", ErrIncompleteState, strings.Join(missing, ", "))
	}

	snap := ErvSnapshot{
		OperationMode:         *st.OperationMode,
		VentilationMode:       *st.VentilationMode,
		RoomTemp:              *st.RoomTemperature,
		SupplyTemp:            *st.SupplyTemperature,
		OutdoorTemp:           *st.OutdoorTemperature,
		FanSpeed:              *st.SetFanSpeed,
		ActualSupplyFanSpeed:  st.ActualSupplyFanSpeed,
		ActualExhaustFanSpeed: st.ActualExhaustFanSpeed,
		SetTemp:               ervDefaultSetTemperature,
		CoolingSetTemp:        ervDefaultCoolingSetTemp,
		HeatingSetTemp:        ervDefaultHeatingSetTemp,
		CoreMaintenance:       st.CoreMaintenanceRequired,
		FilterMaintenance:     st.FilterMaintenanceRequired,
		ErrorCode:             st.ErrorCode,
		HasError:              st.HasError,
	}

	if st.Power != nil {
		snap.Power = *st.Power
	}
	if st.Offline != nil {
		snap.Offline = *st.Offline
	}
	if st.SetTemperature != nil {
		snap.SetTemp = *st.SetTemperature
	}
	if st.DefaultCoolingSetTemperature != nil {
		snap.CoolingSetTemp = *st.DefaultCoolingSetTemperature
	}
	if st.DefaultHeatingSetTemperature != nil {
		snap.HeatingSetTemp = *st.DefaultHeatingSetTemperature
	}

	return snap, nil
}

// missingErvFields lists the required fields absent from a raw blob.
func missingErvFields(st ervState) []string {
	var missing []string
	if st.RoomTemperature == nil {
		missing = append(missing, "RoomTemperature")
	}
	if st.SupplyTemperature == nil {
		missing = append(missing, "SupplyTemperature")
	}
	if st.OutdoorTemperature == nil {
		missing = append(missing, "OutdoorTemperature")
	}
	if st.OperationMode == nil {
		missing = append(missing, "OperationMode")
	}
	if st.VentilationMode == nil {
		missing = append(missing, "VentilationMode")
	}
	if st.SetFanSpeed == nil {
		missing = append(missing, "SetFanSpeed")
	}
	return missing
}

// FanAuto reports whether the fan is under automatic control.
func (s ErvSnapshot) FanAuto() bool {
	return s.FanSpeed == FanSpeedAuto
}

// ErvCommand is the SetErv request body.
type ErvCommand struct {
	DeviceID        int  `json:"DeviceID"`
	Power           bool `json:"Power"`
	VentilationMode int  `json:"VentilationMode"`
	SetFanSpeed     int  `json:"SetFanSpeed"`

	EffectiveFlags    uint64 `json:"EffectiveFlags"`
	HasPendingCommand bool   `json:"HasPendingCommand"`
}

// NewErvCommand builds a command from a snapshot into which the caller has
// already written the mutated fields, plus the combined effective flags of
// those mutations.
func NewErvCommand(deviceID int, s ErvSnapshot, flags uint64) *ErvCommand {
	return &ErvCommand{
		DeviceID:        deviceID,
		Power:           s.Power,
		VentilationMode: s.VentilationMode,
		SetFanSpeed:     s.FanSpeed,
		EffectiveFlags:  flags,
	}
}

// Family implements Command.
func (c *ErvCommand) Family() Family { return FamilyEnergyRecovery }

// TargetDevice implements Command.
func (c *ErvCommand) TargetDevice() int { return c.DeviceID }

// Flags implements Command.
func (c *ErvCommand) Flags() uint64 { return c.EffectiveFlags }

// MarkPending implements Command.
func (c *ErvCommand) MarkPending() { c.HasPendingCommand = true }
