package device

import (
	"encoding/json"
	"fmt"
)

// Family identifies a MELCloud device family. The numeric values are the
// wire values of the ListDevices "Type" field.
type Family int

const (
	// FamilyAirToAir is an air conditioner / heat pump indoor unit (ATA).
	FamilyAirToAir Family = 0

	// FamilyAirToWater is a hydronic heat pump with zones and a tank (ATW).
	FamilyAirToWater Family = 1

	// FamilyEnergyRecovery is a Lossnay energy-recovery ventilator (ERV).
	FamilyEnergyRecovery Family = 3
)

// FamilyFromType maps a wire device type id to a Family.
func FamilyFromType(t int) (Family, error) {
	switch Family(t) {
	case FamilyAirToAir, FamilyAirToWater, FamilyEnergyRecovery:
		return Family(t), nil
	default:
		return 0, fmt.Errorf("%w: type %d", ErrUnknownFamily, t)
	}
}

// String returns the short family name used in topics and logs.
func (f Family) String() string {
	switch f {
	case FamilyAirToAir:
		return "ata"
	case FamilyAirToWater:
		return "atw"
	case FamilyEnergyRecovery:
		return "erv"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// SetPath returns the command endpoint path for the family.
func (f Family) SetPath() string {
	switch f {
	case FamilyAirToWater:
		return "/Device/SetAtw"
	case FamilyEnergyRecovery:
		return "/Device/SetErv"
	default:
		return "/Device/SetAta"
	}
}

// Permissions mirrors the per-device permission block from ListDevices.
type Permissions struct {
	CanSetOperationMode bool `json:"CanSetOperationMode"`
	CanSetFanSpeed      bool `json:"CanSetFanSpeed"`
	CanSetVaneDirection bool `json:"CanSetVaneDirection"`
	CanSetPower         bool `json:"CanSetPower"`
}

// Preset is a user-defined state preset stored in MELCloud.
// The payload is retained verbatim; presets are applied cloud-side.
type Preset struct {
	ID     int             `json:"ID"`
	Number int             `json:"NumberDescription,omitempty"`
	Data   json.RawMessage `json:"Data,omitempty"`
}

// Descriptor is the flattened ListDevices entry for one device.
//
// It combines identity and semi-static capability fields with the raw
// family-specific runtime blob in Device. Descriptors are refreshed
// wholesale on every discovery pass and persisted one file per device;
// they are never patched field by field.
type Descriptor struct {
	DeviceID     int    `json:"DeviceID"`
	DeviceName   string `json:"DeviceName"`
	BuildingID   int    `json:"BuildingID"`
	FloorID      *int   `json:"FloorID,omitempty"`
	AreaID       *int   `json:"AreaID,omitempty"`
	Type         int    `json:"Type"`
	MacAddress   string `json:"MacAddress,omitempty"`
	SerialNumber string `json:"SerialNumber,omitempty"`

	// UI hiding hints configured cloud-side.
	HideVaneControls       bool `json:"HideVaneControls,omitempty"`
	HideDryModeControl     bool `json:"HideDryModeControl,omitempty"`
	HideRoomTemperature    bool `json:"HideRoomTemperature,omitempty"`
	HideSupplyTemperature  bool `json:"HideSupplyTemperature,omitempty"`
	HideOutdoorTemperature bool `json:"HideOutdoorTemperature,omitempty"`

	MinTemperature float64 `json:"MinTemperature,omitempty"`
	MaxTemperature float64 `json:"MaxTemperature,omitempty"`

	Presets     []Preset    `json:"Presets,omitempty"`
	Permissions Permissions `json:"Permissions,omitempty"`

	// Device is the family-specific runtime blob, kept raw so the full
	// server payload survives persistence unchanged.
	Device json.RawMessage `json:"Device,omitempty"`
}

// Family returns the device family, or ErrUnknownFamily.
func (d Descriptor) Family() (Family, error) {
	return FamilyFromType(d.Type)
}

// Validate reports whether the descriptor is structurally complete enough
// to drive a synchronizer: a device id, a known family and a runtime blob.
func (d Descriptor) Validate() error {
	if d.DeviceID == 0 {
		return fmt.Errorf("%w: missing device id", ErrIncompleteState)
	}
	if _, err := d.Family(); err != nil {
		return err
	}
	if len(d.Device) == 0 || string(d.Device) == "null" {
		return fmt.Errorf("%w: missing runtime blob for device %d", ErrIncompleteState, d.DeviceID)
	}
	return nil
}

// Capabilities are the semi-static unit capabilities embedded in the
// runtime blob. Field names are shared across families; fields that a
// family does not report stay at their zero value.
type Capabilities struct {
	NumberOfFanSpeeds    int     `json:"NumberOfFanSpeeds"`
	HasAutomaticFanSpeed bool    `json:"HasAutomaticFanSpeed"`
	TemperatureIncrement float64 `json:"TemperatureIncrement"`

	MinTempCoolDry   float64 `json:"MinTempCoolDry"`
	MaxTempCoolDry   float64 `json:"MaxTempCoolDry"`
	MinTempHeat      float64 `json:"MinTempHeat"`
	MaxTempHeat      float64 `json:"MaxTempHeat"`
	MinTempAutomatic float64 `json:"MinTempAutomatic"`
	MaxTempAutomatic float64 `json:"MaxTempAutomatic"`

	HasCoolOperationMode bool `json:"HasCoolOperationMode"`
	HasHeatOperationMode bool `json:"HasHeatOperationMode"`
	HasAutoOperationMode bool `json:"HasAutoOperationMode"`

	// ERV ventilation capabilities.
	HasBypassVentilationMode bool `json:"HasBypassVentilationMode"`
	HasAutoVentilationMode   bool `json:"HasAutoVentilationMode"`
	HasCO2Sensor             bool `json:"HasCO2Sensor"`
	HasPM25Sensor            bool `json:"HasPM25Sensor"`

	// ATW capabilities.
	HasZone2    bool `json:"HasZone2"`
	HasHotWater bool `json:"HasHotWaterTank"`
	CanCool     bool `json:"CanCool"`
	CanHeat     bool `json:"CanHeat"`
}

// Capabilities parses the capability fields out of the runtime blob.
func (d Descriptor) Capabilities() (Capabilities, error) {
	var caps Capabilities
	if len(d.Device) == 0 {
		return caps, fmt.Errorf("%w: device %d has no runtime blob", ErrIncompleteState, d.DeviceID)
	}
	if err := json.Unmarshal(d.Device, &caps); err != nil {
		return Capabilities{}, fmt.Errorf("device: parsing capabilities for device %d: %w", d.DeviceID, err)
	}
	if caps.TemperatureIncrement == 0 {
		caps.TemperatureIncrement = 1
	}
	return caps, nil
}

// Identity is the static identity emitted once per device on the first
// successful state read.
type Identity struct {
	DeviceID     int    `json:"device_id"`
	Name         string `json:"name"`
	Family       string `json:"family"`
	Manufacturer string `json:"manufacturer"`
	ModelIndoor  string `json:"model_indoor,omitempty"`
	ModelOutdoor string `json:"model_outdoor,omitempty"`
	SerialNumber string `json:"serial_number"`
	Firmware     string `json:"firmware,omitempty"`
}

// unit is one physical unit attached to a device adapter.
type unit struct {
	Model    string `json:"Model"`
	IsIndoor bool   `json:"IsIndoor"`
}

// identityProbe pulls identity fields out of the runtime blob without
// committing to a family-specific schema.
type identityProbe struct {
	Units              []unit `json:"Units"`
	FirmwareAppVersion any    `json:"FirmwareAppVersion"`
}

// Identity extracts the static identity for the device.
//
// Returns:
//   - Identity: Populated identity; model fields stay empty when the
//     adapter reports no configured units
//   - error: If the runtime blob cannot be parsed
func (d Descriptor) Identity() (Identity, error) {
	family, err := d.Family()
	if err != nil {
		return Identity{}, err
	}

	id := Identity{
		DeviceID:     d.DeviceID,
		Name:         d.DeviceName,
		Family:       family.String(),
		Manufacturer: "Mitsubishi",
		SerialNumber: d.SerialNumber,
	}

	var probe identityProbe
	if len(d.Device) > 0 {
		if err := json.Unmarshal(d.Device, &probe); err != nil {
			return Identity{}, fmt.Errorf("device: parsing identity for device %d: %w", d.DeviceID, err)
		}
	}
	for _, u := range probe.Units {
		if u.Model == "" {
			continue
		}
		if u.IsIndoor {
			id.ModelIndoor = u.Model
		} else {
			id.ModelOutdoor = u.Model
		}
	}
	if probe.FirmwareAppVersion != nil {
		id.Firmware = fmt.Sprint(probe.FirmwareAppVersion)
	}
	return id, nil
}
