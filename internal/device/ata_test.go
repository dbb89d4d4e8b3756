package device

import (
	"encoding/json"
	"errors"
	"testing"
)

func validAtaBlob(t *testing.T, mutate func(m map[string]any)) json.RawMessage {
	t.Helper()
	m := map[string]any{
		"Power":                   true,
		"InStandbyMode":           false,
		"RoomTemperature":         21.5,
		"SetTemperature":          22.0,
		"OutdoorTemperature":      9.0,
		"OperationMode":           AtaModeHeat,
		"SetFanSpeed":             3,
		"ActualFanSpeed":          3,
		"VaneHorizontalDirection": 0,
		"VaneVerticalDirection":   2,
		"ProhibitPower":           false,
		"ErrorCode":               8000,
		"HasError":                false,
		"Offline":                 false,
	}
	if mutate != nil {
		mutate(m)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling blob: %v", err)
	}
	return raw
}

func TestParseAta(t *testing.T) {
	snap, err := ParseAta(validAtaBlob(t, nil))
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}

	if !snap.Power {
		t.Error("Power = false, want true")
	}
	if snap.OperationMode != AtaModeHeat {
		t.Errorf("OperationMode = %d, want %d", snap.OperationMode, AtaModeHeat)
	}
	if snap.RoomTemp != 21.5 {
		t.Errorf("RoomTemp = %v, want 21.5", snap.RoomTemp)
	}
	if snap.SetTemp != 22.0 {
		t.Errorf("SetTemp = %v, want 22.0", snap.SetTemp)
	}
	if snap.FanSpeed != 3 || snap.FanAuto() {
		t.Errorf("FanSpeed = %d (auto=%v), want discrete 3", snap.FanSpeed, snap.FanAuto())
	}
	if snap.Swing {
		t.Error("Swing = true for non-swing vane positions")
	}
}

func TestParseAtaMissingRequiredField(t *testing.T) {
	tests := []struct {
		name  string
		field string
	}{
		{"room temperature", "RoomTemperature"},
		{"set temperature", "SetTemperature"},
		{"operation mode", "OperationMode"},
		{"fan speed", "SetFanSpeed"},
		{"vane horizontal", "VaneHorizontalDirection"},
		{"vane vertical", "VaneVerticalDirection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := validAtaBlob(t, func(m map[string]any) {
				m[tt.field] = nil
			})
			if _, err := ParseAta(blob); !errors.Is(err, ErrIncompleteState) {
				t.Errorf("ParseAta() error = %v, want ErrIncompleteState", err)
			}
		})
	}
}

// A transient null must not take the optional fields down with it: the
// failure is per parse, and the same blob with the null restored parses
// cleanly again.
func TestParseAtaRecoversAfterNull(t *testing.T) {
	broken := validAtaBlob(t, func(m map[string]any) {
		m["RoomTemperature"] = nil
	})
	if _, err := ParseAta(broken); err == nil {
		t.Fatal("ParseAta() with null RoomTemperature should fail")
	}
	if _, err := ParseAta(validAtaBlob(t, nil)); err != nil {
		t.Fatalf("ParseAta() after recovery error = %v", err)
	}
}

func TestParseAtaSwingDetection(t *testing.T) {
	tests := []struct {
		name       string
		horizontal int
		vertical   int
		want       bool
	}{
		{"both swing sentinels", VaneHorizontalSwing, VaneVerticalSwing, true},
		{"horizontal only", VaneHorizontalSwing, 2, false},
		{"vertical only", 0, VaneVerticalSwing, false},
		{"fixed positions", 3, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := validAtaBlob(t, func(m map[string]any) {
				m["VaneHorizontalDirection"] = tt.horizontal
				m["VaneVerticalDirection"] = tt.vertical
			})
			snap, err := ParseAta(blob)
			if err != nil {
				t.Fatalf("ParseAta() error = %v", err)
			}
			if snap.Swing != tt.want {
				t.Errorf("Swing = %v, want %v", snap.Swing, tt.want)
			}
		})
	}
}

func TestParseAtaFanAuto(t *testing.T) {
	blob := validAtaBlob(t, func(m map[string]any) {
		m["SetFanSpeed"] = FanSpeedAuto
	})
	snap, err := ParseAta(blob)
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	if !snap.FanAuto() {
		t.Error("FanAuto() = false for fan speed 0")
	}
}

func TestParseAtaNullPowerDefaultsOff(t *testing.T) {
	blob := validAtaBlob(t, func(m map[string]any) {
		m["Power"] = nil
	})
	snap, err := ParseAta(blob)
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	if snap.Power {
		t.Error("Power = true, want false for null Power")
	}
}

func TestAtaSnapshotEquality(t *testing.T) {
	a, err := ParseAta(validAtaBlob(t, nil))
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	b, err := ParseAta(validAtaBlob(t, nil))
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	if a != b {
		t.Error("identical blobs produced unequal snapshots")
	}

	c, err := ParseAta(validAtaBlob(t, func(m map[string]any) {
		m["RoomTemperature"] = 21.6
	}))
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	if a == c {
		t.Error("changed room temperature produced equal snapshots")
	}
}

func TestAtaCommandMarkPending(t *testing.T) {
	snap, err := ParseAta(validAtaBlob(t, nil))
	if err != nil {
		t.Fatalf("ParseAta() error = %v", err)
	}
	snap.SetTemp = 23.5

	flags, err := EncodeFlags(FamilyAirToAir, FieldSetTemperature)
	if err != nil {
		t.Fatalf("EncodeFlags() error = %v", err)
	}

	cmd := NewAtaCommand(42, snap, flags)
	if cmd.HasPendingCommand {
		t.Error("HasPendingCommand = true before MarkPending")
	}
	cmd.MarkPending()
	if !cmd.HasPendingCommand {
		t.Error("HasPendingCommand = false after MarkPending")
	}
	if cmd.TargetDevice() != 42 {
		t.Errorf("TargetDevice() = %d, want 42", cmd.TargetDevice())
	}
	if cmd.Family() != FamilyAirToAir {
		t.Errorf("Family() = %v, want FamilyAirToAir", cmd.Family())
	}
	if cmd.Flags() != flags {
		t.Errorf("Flags() = %#x, want %#x", cmd.Flags(), flags)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshaling command: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("unmarshaling command: %v", err)
	}
	if wire["SetTemperature"] != 23.5 {
		t.Errorf("wire SetTemperature = %v, want 23.5", wire["SetTemperature"])
	}
	if wire["HasPendingCommand"] != true {
		t.Error("wire HasPendingCommand missing or false")
	}
}
