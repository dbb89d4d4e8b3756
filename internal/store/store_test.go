package store

import (
	"errors"
	"os"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"Name"`
	Value int    `json:"Value"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := DeviceKey("home", 42)
	in := sample{Name: "living room", Value: 7}
	if err := s.WriteJSON(key, in); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var out sample
	if err := s.ReadJSON(key, &out); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestWriteJSON_PrettyPrinted(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := AccountInfoKey("home")
	if err := s.WriteJSON(key, sample{Name: "a", Value: 1}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"Name\"") {
		t.Errorf("file is not pretty-printed:\n%s", data)
	}
}

func TestReadJSON_NotFound(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var out sample
	err = s.ReadJSON(DeviceKey("home", 1), &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadJSON() error = %v, want ErrNotFound", err)
	}
}

func TestReadJSON_EmptyFile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := BuildingsKey("home")
	if err := s.Ensure(key); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	var out sample
	err = s.ReadJSON(key, &out)
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("ReadJSON() error = %v, want ErrEmpty", err)
	}
}

func TestEnsure_DoesNotTruncateExisting(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := AccountInfoKey("home")
	if err := s.WriteJSON(key, sample{Name: "keep", Value: 3}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if err := s.Ensure(key); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	var out sample
	if err := s.ReadJSON(key, &out); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if out.Name != "keep" {
		t.Errorf("Ensure() truncated existing data: %+v", out)
	}
}

func TestKeys_SanitizeAccountName(t *testing.T) {
	key := AccountInfoKey("../evil")
	if strings.Contains(key, "..") {
		t.Errorf("AccountInfoKey did not sanitize traversal: %q", key)
	}
}

func TestWriteJSON_OverwritesWholesale(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := DeviceKey("home", 9)
	if err := s.WriteJSON(key, map[string]int{"A": 1, "B": 2}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if err := s.WriteJSON(key, map[string]int{"A": 3}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	out := map[string]int{}
	if err := s.ReadJSON(key, &out); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if _, stale := out["B"]; stale {
		t.Error("old field survived overwrite; writes must replace the file wholesale")
	}
}
