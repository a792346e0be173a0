package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a temp YAML file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
motor:
  step_pin: 16
  dir_pin: 15
  enable_pin: 18
`

func TestLoad_Minimal_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Motor.RPM != 30 {
		t.Errorf("default rpm = %d, want 30", cfg.Motor.RPM)
	}
	if cfg.Motor.StepsPerRev != 200 {
		t.Errorf("default steps_per_rev = %d, want 200", cfg.Motor.StepsPerRev)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Errorf("default resolution = %dx%d, want 640x480", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.FlushFrames != 3 {
		t.Errorf("default flush_frames = %d, want 3", cfg.Camera.FlushFrames)
	}
	if cfg.Vision.ConfidenceThreshold != 0.7 {
		t.Errorf("default confidence_threshold = %v, want 0.7", cfg.Vision.ConfidenceThreshold)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("default broker = %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Topic != "bowl/state" {
		t.Errorf("default topic = %q", cfg.MQTT.Topic)
	}
	if cfg.Loop.CheckIntervalSeconds != 10 {
		t.Errorf("default check_interval_seconds = %d, want 10", cfg.Loop.CheckIntervalSeconds)
	}
	if cfg.Loop.MinDispenseIntervalSeconds != 30 {
		t.Errorf("default min_dispense_interval_seconds = %d, want 30", cfg.Loop.MinDispenseIntervalSeconds)
	}
	if cfg.Loop.Portions != 1 {
		t.Errorf("default portions = %d, want 1", cfg.Loop.Portions)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `
motor:
  step_pin: 16
  dir_pin: 15
  enable_pin: 18
  rpm: 60
  steps_per_rev: 400
  settle_delay_ms: 100
  portion_pause_ms: 250
camera:
  device_id: 1
  width: 1280
  height: 720
  flush_frames: 5
vision:
  model_path: /opt/feedgo/model.json
  confidence_threshold: 0.85
mqtt:
  broker: tcp://10.0.0.5:1883
  client_id: feeder-kitchen
  topic: pets/bowl
loop:
  check_interval_seconds: 30
  min_dispense_interval_seconds: 120
  portions: 2
defaults:
  debug_level: 2
  mock_gpio: true
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Motor.RPM != 60 || cfg.Motor.StepsPerRev != 400 {
		t.Errorf("motor = %+v", cfg.Motor)
	}
	if cfg.Camera.DeviceID != 1 || cfg.Camera.Width != 1280 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Vision.ConfidenceThreshold != 0.85 {
		t.Errorf("threshold = %v, want 0.85", cfg.Vision.ConfidenceThreshold)
	}
	if cfg.MQTT.ClientID != "feeder-kitchen" || cfg.MQTT.Topic != "pets/bowl" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Loop.Portions != 2 {
		t.Errorf("portions = %d, want 2", cfg.Loop.Portions)
	}
	if !cfg.Defaults.MockGPIO {
		t.Error("mock_gpio should be true")
	}
}

func TestLoad_MissingMotorPins(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no pins", `camera: {device_id: 0}`},
		{"missing enable", "motor:\n  step_pin: 16\n  dir_pin: 15\n"},
		{"negative pin", "motor:\n  step_pin: -1\n  dir_pin: 15\n  enable_pin: 18\n"},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.yaml))
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestLoad_DuplicateMotorPins(t *testing.T) {
	yaml := "motor:\n  step_pin: 16\n  dir_pin: 16\n  enable_pin: 18\n"
	_, err := Load(writeConfig(t, yaml))
	if err == nil {
		t.Fatal("expected error for duplicate pins, got nil")
	}
	if !strings.Contains(err.Error(), "distinct") {
		t.Errorf("error should mention distinct pins, got: %v", err)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	cases := []string{"-0.1", "1.0", "1.5"}
	for _, v := range cases {
		yaml := minimalYAML + "vision:\n  confidence_threshold: " + v + "\n"
		if _, err := Load(writeConfig(t, yaml)); err == nil {
			t.Errorf("threshold %s: expected error, got nil", v)
		}
	}
}

func TestLoad_InvalidDebugLevel(t *testing.T) {
	yaml := minimalYAML + "defaults:\n  debug_level: 9\n"
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Error("expected error for debug_level 9, got nil")
	}
}

func TestLoad_ExcessiveRPM(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "  enable_pin: 18\n", "  enable_pin: 18\n  rpm: 1200\n", 1)
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Error("expected error for rpm 1200, got nil")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "motor: [not: a map")); err == nil {
		t.Error("expected error for malformed yaml, got nil")
	}
}

func TestStepPulseDelay(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// 30 RPM × 200 steps/rev → 60/(30·200) = 10ms held on each half-cycle
	want := 10 * time.Millisecond
	if got := cfg.StepPulseDelay(); got != want {
		t.Errorf("StepPulseDelay = %v, want %v", got, want)
	}
}

func TestStepPulseDelayScalesWithRPM(t *testing.T) {
	tests := []struct {
		rpm  int
		want time.Duration
	}{
		{15, 20 * time.Millisecond},
		{30, 10 * time.Millisecond},
		{60, 5 * time.Millisecond},
	}

	for _, tt := range tests {
		yaml := minimalYAML + fmt.Sprintf("  rpm: %d\n", tt.rpm)
		cfg, err := Load(writeConfig(t, yaml))
		if err != nil {
			t.Fatalf("Load (rpm %d): %v", tt.rpm, err)
		}
		if got := cfg.StepPulseDelay(); got != tt.want {
			t.Errorf("StepPulseDelay at %d RPM = %v, want %v", tt.rpm, got, tt.want)
		}
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CheckInterval() != 10*time.Second {
		t.Errorf("CheckInterval = %v, want 10s", cfg.CheckInterval())
	}
	if cfg.MinDispenseInterval() != 30*time.Second {
		t.Errorf("MinDispenseInterval = %v, want 30s", cfg.MinDispenseInterval())
	}
	if cfg.SettleDelay() != 50*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 50ms", cfg.SettleDelay())
	}
	if cfg.PortionPause() != 500*time.Millisecond {
		t.Errorf("PortionPause = %v, want 500ms", cfg.PortionPause())
	}
}
