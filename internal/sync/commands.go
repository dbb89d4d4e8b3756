package sync

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skra72/melcloudd/internal/device"
)

func isIncomplete(err error) bool {
	return errors.Is(err, device.ErrIncompleteState)
}

// buildCommand parses the current runtime blob, applies the mutations
// and encodes them into one family command.
func buildCommand(family device.Family, deviceID int, raw json.RawMessage, values map[device.Field]any) (device.Command, error) {
	fields := make([]device.Field, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	flags, err := device.EncodeFlags(family, fields...)
	if err != nil {
		return nil, err
	}

	switch family {
	case device.FamilyAirToAir:
		snap, err := device.ParseAta(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoState, err)
		}
		if snap, err = applyAta(snap, values); err != nil {
			return nil, err
		}
		return device.NewAtaCommand(deviceID, snap, flags), nil

	case device.FamilyAirToWater:
		snap, err := device.ParseAtw(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoState, err)
		}
		if snap, err = applyAtw(snap, values); err != nil {
			return nil, err
		}
		return device.NewAtwCommand(deviceID, snap, flags), nil

	case device.FamilyEnergyRecovery:
		snap, err := device.ParseErv(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoState, err)
		}
		if snap, err = applyErv(snap, values); err != nil {
			return nil, err
		}
		return device.NewErvCommand(deviceID, snap, flags), nil

	default:
		return nil, fmt.Errorf("%w: %d", device.ErrUnknownFamily, int(family))
	}
}

func applyAta(snap device.AtaSnapshot, values map[device.Field]any) (device.AtaSnapshot, error) {
	for field, value := range values {
		var err error
		switch field {
		case device.FieldPower:
			snap.Power, err = toBool(field, value)
		case device.FieldOperationMode:
			snap.OperationMode, err = toInt(field, value)
		case device.FieldSetTemperature:
			snap.SetTemp, err = toFloat(field, value)
		case device.FieldSetFanSpeed:
			snap.FanSpeed, err = toInt(field, value)
		case device.FieldVaneHorizontal:
			snap.VaneHorizontal, err = toInt(field, value)
		case device.FieldVaneVertical:
			snap.VaneVertical, err = toInt(field, value)
		case device.FieldProhibit:
			// One wire flag covers the whole prohibit set.
			var on bool
			if on, err = toBool(field, value); err == nil {
				snap.ProhibitPower = on
				snap.ProhibitSetTemperature = on
				snap.ProhibitOperationMode = on
			}
		default:
			err = fmt.Errorf("%w: field %q not settable here", ErrInvalidValue, field)
		}
		if err != nil {
			return device.AtaSnapshot{}, err
		}
	}
	return snap, nil
}

func applyAtw(snap device.AtwSnapshot, values map[device.Field]any) (device.AtwSnapshot, error) {
	for field, value := range values {
		var err error
		switch field {
		case device.FieldPower:
			snap.Power, err = toBool(field, value)
		case device.FieldOperationMode:
			snap.OperationMode, err = toInt(field, value)
		case device.FieldOperationModeZone1:
			snap.OperationModeZone1, err = toInt(field, value)
		case device.FieldOperationModeZone2:
			snap.OperationModeZone2, err = toInt(field, value)
		case device.FieldSetTemperatureZone1:
			snap.SetTempZone1, err = toFloat(field, value)
		case device.FieldSetTemperatureZone2:
			snap.SetTempZone2, err = toFloat(field, value)
		case device.FieldSetTankWaterTemperature:
			snap.SetTankWaterTemp, err = toFloat(field, value)
		case device.FieldForcedHotWaterMode:
			snap.ForcedHotWaterMode, err = toBool(field, value)
		default:
			err = fmt.Errorf("%w: field %q not settable here", ErrInvalidValue, field)
		}
		if err != nil {
			return device.AtwSnapshot{}, err
		}
	}
	return snap, nil
}

func applyErv(snap device.ErvSnapshot, values map[device.Field]any) (device.ErvSnapshot, error) {
	for field, value := range values {
		var err error
		switch field {
		case device.FieldPower:
			snap.Power, err = toBool(field, value)
		case device.FieldVentilationMode:
			snap.VentilationMode, err = toInt(field, value)
		case device.FieldSetFanSpeed:
			snap.FanSpeed, err = toInt(field, value)
		default:
			err = fmt.Errorf("%w: field %q not settable here", ErrInvalidValue, field)
		}
		if err != nil {
			return device.ErvSnapshot{}, err
		}
	}
	return snap, nil
}

// Mutation values arrive from JSON decoders, so numbers show up as
// float64 as often as int.

func toBool(field device.Field, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s wants a boolean, got %T", ErrInvalidValue, field, v)
	}
	return b, nil
}

func toInt(field device.Field, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s wants an integer, got %v", ErrInvalidValue, field, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s wants an integer, got %T", ErrInvalidValue, field, v)
	}
}

func toFloat(field device.Field, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s wants a number, got %T", ErrInvalidValue, field, v)
	}
}
