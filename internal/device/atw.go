package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Air-to-water zone operation modes on the wire. The same values apply
// to both zones.
const (
	AtwZoneHeatRoom  = 0
	AtwZoneHeatFlow  = 1
	AtwZoneHeatCurve = 2
	AtwZoneCoolRoom  = 3
	AtwZoneCoolFlow  = 4
)

// atwState is the raw air-to-water runtime blob.
type atwState struct {
	Power              *bool    `json:"Power"`
	OutdoorTemperature *float64 `json:"OutdoorTemperature"`
	OperationMode      *int     `json:"OperationMode"`

	OperationModeZone1   *int     `json:"OperationModeZone1"`
	SetTemperatureZone1  *float64 `json:"SetTemperatureZone1"`
	RoomTemperatureZone1 *float64 `json:"RoomTemperatureZone1"`

	OperationModeZone2   *int     `json:"OperationModeZone2"`
	SetTemperatureZone2  *float64 `json:"SetTemperatureZone2"`
	RoomTemperatureZone2 *float64 `json:"RoomTemperatureZone2"`

	SetTankWaterTemperature *float64 `json:"SetTankWaterTemperature"`
	TankWaterTemperature    *float64 `json:"TankWaterTemperature"`
	ForcedHotWaterMode      bool     `json:"ForcedHotWaterMode"`
	EcoHotWater             bool     `json:"EcoHotWater"`

	HolidayMode          bool `json:"HolidayMode"`
	ProhibitHotWater     bool `json:"ProhibitHotWater"`
	ProhibitHeatingZone1 bool `json:"ProhibitHeatingZone1"`
	ProhibitCoolingZone1 bool `json:"ProhibitCoolingZone1"`

	ErrorCode int  `json:"ErrorCode"`
	HasError  bool `json:"HasError"`
	Offline   bool `json:"Offline"`
}

// AtwSnapshot is the normalized air-to-water state. Zone 2 fields are
// zero-valued on single-zone installations; HasZone2 on the descriptor's
// capabilities says whether they carry meaning.
type AtwSnapshot struct {
	Power         bool    `json:"power"`
	OperationMode int     `json:"operation_mode"`
	OutdoorTemp   float64 `json:"outdoor_temperature"`

	OperationModeZone1 int     `json:"operation_mode_zone1"`
	SetTempZone1       float64 `json:"set_temperature_zone1"`
	RoomTempZone1      float64 `json:"room_temperature_zone1"`

	OperationModeZone2 int     `json:"operation_mode_zone2"`
	SetTempZone2       float64 `json:"set_temperature_zone2"`
	RoomTempZone2      float64 `json:"room_temperature_zone2"`

	SetTankWaterTemp   float64 `json:"set_tank_water_temperature"`
	TankWaterTemp      float64 `json:"tank_water_temperature"`
	ForcedHotWaterMode bool    `json:"forced_hot_water_mode"`
	EcoHotWater        bool    `json:"eco_hot_water"`

	HolidayMode          bool `json:"holiday_mode"`
	ProhibitHotWater     bool `json:"prohibit_hot_water"`
	ProhibitHeatingZone1 bool `json:"prohibit_heating_zone1"`
	ProhibitCoolingZone1 bool `json:"prohibit_cooling_zone1"`

	ErrorCode int  `json:"error_code"`
	HasError  bool `json:"has_error"`
	Offline   bool `json:"offline"`
}

// ParseAtw validates and normalizes a raw air-to-water runtime blob.
//
// Returns:
//   - AtwSnapshot: Normalized state
//   - error: ErrIncompleteState when any required field is null or
//     missing, otherwise the JSON parse failure
func ParseAtw(raw json.RawMessage) (AtwSnapshot, error) {
	var st atwState
	if err := json.Unmarshal(raw, &st); err != nil {
		return AtwSnapshot{}, fmt.Errorf("device: parsing atw state: %w", err)
	}

	if missing := missingAtwFields(st); len(missing) > 0 {
		return AtwSnapshot{}, fmt.Errorf("%w: atw fields %s", ErrIncompleteState, strings.Join(missing, ", "))
	}

	power := false
	if st.Power != nil {
		power = *st.Power
	}

	snap := AtwSnapshot{
		Power:                power,
		OperationMode:        *st.OperationMode,
		OutdoorTemp:          *st.OutdoorTemperature,
		OperationModeZone1:   *st.OperationModeZone1,
		SetTempZone1:         *st.SetTemperatureZone1,
		RoomTempZone1:        *st.RoomTemperatureZone1,
		SetTankWaterTemp:     *st.SetTankWaterTemperature,
		TankWaterTemp:        *st.TankWaterTemperature,
		ForcedHotWaterMode:   st.ForcedHotWaterMode,
		EcoHotWater:          st.EcoHotWater,
		HolidayMode:          st.HolidayMode,
		ProhibitHotWater:     st.ProhibitHotWater,
		ProhibitHeatingZone1: st.ProhibitHeatingZone1,
		ProhibitCoolingZone1: st.ProhibitCoolingZone1,
		ErrorCode:            st.ErrorCode,
		HasError:             st.HasError,
		Offline:              st.Offline,
	}

	// Zone 2 is optional hardware. Nulls stay zero-valued rather than
	// failing the whole snapshot.
	if st.OperationModeZone2 != nil {
		snap.OperationModeZone2 = *st.OperationModeZone2
	}
	if st.SetTemperatureZone2 != nil {
		snap.SetTempZone2 = *st.SetTemperatureZone2
	}
	if st.RoomTemperatureZone2 != nil {
		snap.RoomTempZone2 = *st.RoomTemperatureZone2
	}

	return snap, nil
}

// missingAtwFields lists the required fields absent from a raw blob.
func missingAtwFields(st atwState) []string {
	var missing []string
	if st.OutdoorTemperature == nil {
		missing = append(missing, "OutdoorTemperature")
	}
	if st.OperationMode == nil {
		missing = append(missing, "OperationMode")
	}
	if st.OperationModeZone1 == nil {
		missing = append(missing, "OperationModeZone1")
	}
	if st.SetTemperatureZone1 == nil {
		missing = append(missing, "SetTemperatureZone1")
	}
	if st.RoomTemperatureZone1 == nil {
		missing = append(missing, "RoomTemperatureZone1")
	}
	if st.SetTankWaterTemperature == nil {
		missing = append(missing, "SetTankWaterTemperature")
	}
	if st.TankWaterTemperature == nil {
		missing = append(missing, "TankWaterTemperature")
	}
	return missing
}

// AtwCommand is the SetAtw request body.
type AtwCommand struct {
	DeviceID      int  `json:"DeviceID"`
	Power         bool `json:"Power"`
	OperationMode int  `json:"OperationMode"`

	OperationModeZone1  int     `json:"OperationModeZone1"`
	SetTemperatureZone1 float64 `json:"SetTemperatureZone1"`
	OperationModeZone2  int     `json:"OperationModeZone2"`
	SetTemperatureZone2 float64 `json:"SetTemperatureZone2"`

	SetTankWaterTemperature float64 `json:"SetTankWaterTemperature"`
	ForcedHotWaterMode      bool    `json:"ForcedHotWaterMode"`

	EffectiveFlags    uint64 `json:"EffectiveFlags"`
	HasPendingCommand bool   `json:"HasPendingCommand"`
}

// NewAtwCommand builds a command from a snapshot into which the caller has
// already written the mutated fields, plus the combined effective flags of
// those mutations.
func NewAtwCommand(deviceID int, s AtwSnapshot, flags uint64) *AtwCommand {
	return &AtwCommand{
		DeviceID:                deviceID,
		Power:                   s.Power,
		OperationMode:           s.OperationMode,
		OperationModeZone1:      s.OperationModeZone1,
		SetTemperatureZone1:     s.SetTempZone1,
		OperationModeZone2:      s.OperationModeZone2,
		SetTemperatureZone2:     s.SetTempZone2,
		SetTankWaterTemperature: s.SetTankWaterTemp,
		ForcedHotWaterMode:      s.ForcedHotWaterMode,
		EffectiveFlags:          flags,
	}
}

// Family implements Command.
func (c *AtwCommand) Family() Family { return FamilyAirToWater }

// TargetDevice implements Command.
func (c *AtwCommand) TargetDevice() int { return c.DeviceID }

// Flags implements Command.
func (c *AtwCommand) Flags() uint64 { return c.EffectiveFlags }

// MarkPending implements Command.
func (c *AtwCommand) MarkPending() { c.HasPendingCommand = true }
