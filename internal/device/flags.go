package device

import (
	"fmt"
	"math"
)

// Field names a mutable device property for command encoding.
type Field string

// Command fields. Not every field exists in every family; EncodeFlags
// rejects a field the family's table does not contain.
const (
	FieldPower          Field = "Power"
	FieldOperationMode  Field = "OperationMode"
	FieldSetTemperature Field = "SetTemperature"
	FieldSetFanSpeed    Field = "SetFanSpeed"
	FieldVaneVertical   Field = "VaneVertical"
	FieldVaneHorizontal Field = "VaneHorizontal"
	FieldProhibit       Field = "Prohibit"

	FieldOperationModeZone1      Field = "OperationModeZone1"
	FieldOperationModeZone2      Field = "OperationModeZone2"
	FieldForcedHotWaterMode      Field = "ForcedHotWaterMode"
	FieldSetTemperatureZone1     Field = "SetTemperatureZone1"
	FieldSetTemperatureZone2     Field = "SetTemperatureZone2"
	FieldSetTankWaterTemperature Field = "SetTankWaterTemperature"

	FieldVentilationMode Field = "VentilationMode"
)

// Effective-flag tables. These values are the MELCloud wire contract for
// partial updates: each command carries the OR of the flags of every field
// the server should apply. They must match the service exactly or commands
// are silently ignored.
//
// The ATW zone and tank constants are the vendor's composite values
// (legacy bit plus extended bit) and are preserved verbatim.
var (
	ataFlags = map[Field]uint64{
		FieldPower:          0x01,
		FieldOperationMode:  0x02,
		FieldSetTemperature: 0x04,
		FieldSetFanSpeed:    0x08,
		FieldVaneVertical:   0x10,
		FieldProhibit:       0x40,
		FieldVaneHorizontal: 0x100,
	}

	atwFlags = map[Field]uint64{
		FieldPower:                   0x01,
		FieldOperationMode:           0x02,
		FieldOperationModeZone1:      0x08,
		FieldOperationModeZone2:      0x10,
		FieldForcedHotWaterMode:      0x10000,
		FieldSetTemperatureZone1:     0x200000080,
		FieldSetTemperatureZone2:     0x800000200,
		FieldSetTankWaterTemperature: 0x1000000000020,
	}

	ervFlags = map[Field]uint64{
		FieldPower:           0x01,
		FieldVentilationMode: 0x04,
		FieldSetFanSpeed:     0x08,
	}
)

// flagTable returns the family's field→flag table.
func flagTable(f Family) (map[Field]uint64, error) {
	switch f {
	case FamilyAirToAir:
		return ataFlags, nil
	case FamilyAirToWater:
		return atwFlags, nil
	case FamilyEnergyRecovery:
		return ervFlags, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFamily, int(f))
	}
}

// Fields returns the command fields a family supports, in no particular
// order. The returned slice is a copy.
func Fields(f Family) ([]Field, error) {
	table, err := flagTable(f)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, len(table))
	for field := range table {
		fields = append(fields, field)
	}
	return fields, nil
}

// EncodeFlags combines the effective flags of the given fields into one
// bitmask. Multiple simultaneous field mutations must be encoded into a
// single mask and transmitted in a single command; issuing them as
// separate sequential requests risks the remote rejecting overlapping
// in-flight commands.
//
// Parameters:
//   - family: Device family whose table applies
//   - fields: Fields being mutated (at least one)
//
// Returns:
//   - uint64: Bitwise OR of every field's flag
//   - error: ErrUnsupportedField for a field missing from the table,
//     ErrUnknownFamily for an unsupported family
func EncodeFlags(family Family, fields ...Field) (uint64, error) {
	table, err := flagTable(family)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no fields given", ErrUnsupportedField)
	}

	var mask uint64
	for _, field := range fields {
		flag, ok := table[field]
		if !ok {
			return 0, fmt.Errorf("%w: %q for family %s", ErrUnsupportedField, field, family)
		}
		mask |= flag
	}
	return mask, nil
}

// Vane position sentinels on the wire.
const (
	// VaneAuto lets the unit choose the louver position.
	VaneAuto = 0

	// VanePositionMin..VanePositionMax are the discrete louver positions.
	VanePositionMin = 1
	VanePositionMax = 5

	// VaneHorizontalSwing and VaneVerticalSwing are the per-axis swing
	// sentinels; both set together mean the unit is in swing mode.
	VaneHorizontalSwing = 12
	VaneVerticalSwing   = 7
)

// vaneStepDegrees is the angular width of one discrete louver position:
// five positions spread linearly over [-90°, +90°].
const vaneStepDegrees = 45.0

// VanePositionFromDegrees converts a tilt angle to a discrete louver
// position. The domain is [-90, +90] degrees; out-of-domain input is
// clamped, not rejected. Midpoints round half up (-67.5° yields position
// 2), matching the vendor's observed rounding; do not change the rounding
// rule without verifying actual device behaviour.
func VanePositionFromDegrees(degrees float64) int {
	if degrees < -90 {
		degrees = -90
	}
	if degrees > 90 {
		degrees = 90
	}
	pos := int(math.Floor((degrees+90)/vaneStepDegrees+0.5)) + VanePositionMin
	if pos > VanePositionMax {
		pos = VanePositionMax
	}
	return pos
}

// DegreesFromVanePosition converts a discrete louver position back to its
// nominal tilt angle. Positions outside [1, 5] are clamped.
func DegreesFromVanePosition(position int) float64 {
	if position < VanePositionMin {
		position = VanePositionMin
	}
	if position > VanePositionMax {
		position = VanePositionMax
	}
	return float64(position-VanePositionMin)*vaneStepDegrees - 90
}
