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
	originalEnv := os.Getenv("WHAC_CONFIG")
	defer os.Setenv("WHAC_CONFIG", originalEnv)

	os.Setenv("WHAC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSerialPort verifies run fails when no serial port is
// configured. The bridge cannot guess which device to talk to.
func TestRun_MissingSerialPort(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
serial:
  port: ""
  baud_rate: 115200
  read_timeout_ms: 100

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
  qos: 1

bridge:
  namespace: whac
  identify_timeout: 10
  heartbeat_interval: 20
  reconnect:
    timeout: 600
    retry_interval: 2

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalConfig := os.Getenv("WHAC_CONFIG")
	defer os.Setenv("WHAC_CONFIG", originalConfig)
	os.Setenv("WHAC_CONFIG", configPath)

	// Make sure the environment override cannot fill the port in.
	originalPort := os.Getenv("WHAC_SERIAL_PORT")
	defer os.Setenv("WHAC_SERIAL_PORT", originalPort)
	os.Unsetenv("WHAC_SERIAL_PORT")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty serial port")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("WHAC_CONFIG")
	defer os.Setenv("WHAC_CONFIG", originalEnv)

	os.Unsetenv("WHAC_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("WHAC_CONFIG")
	defer os.Setenv("WHAC_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("WHAC_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
