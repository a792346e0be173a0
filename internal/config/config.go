package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MotorConfig holds the stepper motor wiring and motion parameters.
// Pins are BCM GPIO numbers driving an A4988-style driver:
// STEP/DIR pulse pair plus an active-LOW ENABLE line.
type MotorConfig struct {
	StepPin        int `yaml:"step_pin"`
	DirPin         int `yaml:"dir_pin"`
	EnablePin      int `yaml:"enable_pin"`
	RPM            int `yaml:"rpm"`
	StepsPerRev    int `yaml:"steps_per_rev"`
	SettleDelayMs  int `yaml:"settle_delay_ms"`  // driver settle time after enable (ms)
	PortionPauseMs int `yaml:"portion_pause_ms"` // pause between portions (ms)
}

// CameraConfig describes the capture device.
type CameraConfig struct {
	DeviceID    int `yaml:"device_id"`    // V4L2 device index (/dev/videoN)
	Width       int `yaml:"width"`        // capture width in pixels
	Height      int `yaml:"height"`       // capture height in pixels
	FlushFrames int `yaml:"flush_frames"` // stale buffered frames discarded per capture
}

// VisionConfig holds classifier settings.
type VisionConfig struct {
	ModelPath           string  `yaml:"model_path"`           // serialized model artifact
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // empty-class probability gate
}

// MQTTConfig describes the local broker proxy connection.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`    // e.g., "tcp://localhost:1883"
	ClientID string `yaml:"client_id"` // MQTT client identifier
	Topic    string `yaml:"topic"`     // bowl state topic
}

// LoopConfig contains the control loop cadence parameters.
type LoopConfig struct {
	CheckIntervalSeconds       int `yaml:"check_interval_seconds"`        // inter-iteration sleep
	MinDispenseIntervalSeconds int `yaml:"min_dispense_interval_seconds"` // dispense cooldown
	Portions                   int `yaml:"portions"`                      // portions per dispense
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Motor    MotorConfig    `yaml:"motor"`
	Camera   CameraConfig   `yaml:"camera"`
	Vision   VisionConfig   `yaml:"vision"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Loop     LoopConfig     `yaml:"loop"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Motor.StepPin <= 0 || cfg.Motor.DirPin <= 0 || cfg.Motor.EnablePin <= 0 {
		return nil, fmt.Errorf("motor pins (step_pin, dir_pin, enable_pin) are required and must be > 0")
	}
	if cfg.Motor.StepPin == cfg.Motor.DirPin || cfg.Motor.StepPin == cfg.Motor.EnablePin ||
		cfg.Motor.DirPin == cfg.Motor.EnablePin {
		return nil, fmt.Errorf("motor pins must be distinct, got step=%d dir=%d enable=%d",
			cfg.Motor.StepPin, cfg.Motor.DirPin, cfg.Motor.EnablePin)
	}
	if cfg.Motor.RPM <= 0 {
		cfg.Motor.RPM = 30 // reasonable default
	}
	if cfg.Motor.RPM > 600 {
		return nil, fmt.Errorf("motor rpm must be <= 600, got %d", cfg.Motor.RPM)
	}
	if cfg.Motor.StepsPerRev <= 0 {
		cfg.Motor.StepsPerRev = 200 // standard 1.8° stepper
	}
	if cfg.Motor.SettleDelayMs <= 0 {
		cfg.Motor.SettleDelayMs = 50
	}
	if cfg.Motor.PortionPauseMs <= 0 {
		cfg.Motor.PortionPauseMs = 500
	}

	if cfg.Camera.DeviceID < 0 {
		return nil, fmt.Errorf("camera.device_id must be >= 0, got %d", cfg.Camera.DeviceID)
	}
	if cfg.Camera.Width <= 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height <= 0 {
		cfg.Camera.Height = 480
	}
	if cfg.Camera.FlushFrames < 0 {
		return nil, fmt.Errorf("camera.flush_frames must be >= 0, got %d", cfg.Camera.FlushFrames)
	}
	if cfg.Camera.FlushFrames == 0 {
		cfg.Camera.FlushFrames = 3
	}

	if cfg.Vision.ModelPath == "" {
		cfg.Vision.ModelPath = "data/model/bowl_state_model.json"
	}
	if cfg.Vision.ConfidenceThreshold < 0 || cfg.Vision.ConfidenceThreshold >= 1 {
		return nil, fmt.Errorf("vision.confidence_threshold must be in [0, 1), got %.2f",
			cfg.Vision.ConfidenceThreshold)
	}
	if cfg.Vision.ConfidenceThreshold == 0 {
		cfg.Vision.ConfidenceThreshold = 0.7
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "feedgo"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "bowl/state"
	}

	if cfg.Loop.CheckIntervalSeconds <= 0 {
		cfg.Loop.CheckIntervalSeconds = 10
	}
	if cfg.Loop.MinDispenseIntervalSeconds <= 0 {
		cfg.Loop.MinDispenseIntervalSeconds = 30
	}
	if cfg.Loop.Portions < 0 {
		return nil, fmt.Errorf("loop.portions must be >= 0, got %d", cfg.Loop.Portions)
	}
	if cfg.Loop.Portions == 0 {
		cfg.Loop.Portions = 1
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be 0-4, got %d", cfg.Defaults.DebugLevel)
	}

	return &cfg, nil
}

// StepPulseDelay returns the delay per half-cycle of a STEP pulse:
// 60/(rpm*steps_per_rev) seconds held on each of the HIGH and LOW
// halves. The A4988 latches the step on the rising edge; the symmetric
// hold keeps the pulse train at the driver's rated rate for the
// configured RPM.
func (c *Config) StepPulseDelay() time.Duration {
	period := 60.0 / float64(c.Motor.RPM*c.Motor.StepsPerRev)
	return time.Duration(period * float64(time.Second))
}

// SettleDelay returns the driver settle time after enabling the motor.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Motor.SettleDelayMs) * time.Millisecond
}

// PortionPause returns the pause between portions.
func (c *Config) PortionPause() time.Duration {
	return time.Duration(c.Motor.PortionPauseMs) * time.Millisecond
}

// CheckInterval returns the inter-iteration sleep duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Loop.CheckIntervalSeconds) * time.Second
}

// MinDispenseInterval returns the cooldown between dispenses.
func (c *Config) MinDispenseInterval() time.Duration {
	return time.Duration(c.Loop.MinDispenseIntervalSeconds) * time.Second
}
