package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MELCLOUDD_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_IncompleteConfig verifies run fails when required settings
// are missing.
func TestRun_IncompleteConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	// No accounts configured.
	configContent := `
storage:
  dir: "/tmp/melcloudd-test"

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("MELCLOUDD_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without accounts")
	}
}

// TestRun_StartupAndShutdown runs the daemon headless (MQTT, API and
// history disabled) and cancels the context after startup.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
accounts:
  - name: home
    email: user@example.com
    password: hunter2
    base_url: "http://127.0.0.1:1"
    refresh_interval_seconds: 3600
    device_interval_seconds: 3600

storage:
  dir: "` + filepath.Join(tmpDir, "state") + `"

mqtt:
  enabled: false

api:
  enabled: false

history:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("MELCLOUDD_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The cloud endpoint is unreachable; the coordinator retries on its
	// own schedule and run() still shuts down cleanly on cancellation.
	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("MELCLOUDD_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("MELCLOUDD_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestHealthCheck_AllDisabled verifies nil clients pass the check.
func TestHealthCheck_AllDisabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck(nil, nil) error = %v", err)
	}
}
