package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StandardGravity is used to turn calibration weights (kg) into newtons.
const StandardGravity = 9.80665

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Test        TestConfig        `yaml:"test"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// CalibrationConfig controls the guided calibration run.
type CalibrationConfig struct {
	File          string    `yaml:"file"`           // Calibration model output (JSON)
	DataDir       string    `yaml:"data_dir"`       // Per-step raw dumps, empty disables
	WeightsKg     []float64 `yaml:"weights_kg"`     // Reference weights, first one is the tare
	Gravity       float64   `yaml:"gravity"`        // m/s²
	IgnoreSamples int       `yaml:"ignore_samples"` // Readings discarded after each confirmation
	WindowSamples int       `yaml:"window_samples"` // Readings averaged per step
	MaxVariance   float64   `yaml:"max_variance"`   // Raw counts², above this a window is retried, 0 disables
	MaxRetries    int       `yaml:"max_retries"`    // Resamples of an unstable window, 0 fails at once
	Tolerance     float64   `yaml:"tolerance"`      // Fraction of full scale, 0 disables the fit check
	ApplyOnHost   bool      `yaml:"apply_on_host"`  // Convert raw counts on the host during tests
}

// AreaConfig holds default specimen cross-sections per print axis.
type AreaConfig struct {
	XY float64 `yaml:"xy"`
	Z  float64 `yaml:"z"`
}

// TestConfig controls the tensile test recorder.
type TestConfig struct {
	OutputDir      string        `yaml:"output_dir"`
	ResultsFile    string        `yaml:"results_file"` // Relative to OutputDir
	SampleInterval time.Duration `yaml:"sample_interval"`
	Smoothing      int           `yaml:"smoothing"`       // Moving average window, 1 disables
	StartThreshold float64       `yaml:"start_threshold"` // N, 0 records from the first reading
	MinPeak        float64       `yaml:"min_peak"`        // N, peaks below this never count as a break
	BreakFraction  float64       `yaml:"break_fraction"`  // 0 disables break detection
	BreakWindow    time.Duration `yaml:"break_window"`    // Local peak span, 0 compares with the overall peak
	DropDuration   time.Duration `yaml:"drop_duration"`   // 0 disables the low-force timeout
	Trials         int           `yaml:"trials"`
	Areas          AreaConfig    `yaml:"areas"` // mm²
}

// MockConfig contains mock load cell configuration.
type MockConfig struct {
	Offset          float64       `yaml:"offset"`            // Raw counts with no load
	CountsPerNewton float64       `yaml:"counts_per_newton"` // Raw counts per N
	NoiseLevel      float64       `yaml:"noise_level"`       // Raw counts
	SampleRate      time.Duration `yaml:"sample_rate"`
	PullRate        float64       `yaml:"pull_rate"`   // N/s while pulling
	BreakForce      float64       `yaml:"break_force"` // N at which the simulated sample snaps
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Calibration: CalibrationConfig{
			File:          "calibration.json",
			DataDir:       "calibration_data",
			WeightsKg:     []float64{0.0, 7.9, 15.9, 31.4},
			Gravity:       StandardGravity,
			IgnoreSamples: 20,
			WindowSamples: 200,
			MaxVariance:   10000,
			MaxRetries:    3,
			Tolerance:     0.05,
			ApplyOnHost:   true,
		},
		Test: TestConfig{
			OutputDir:      "data",
			ResultsFile:    "results.csv",
			SampleInterval: 10 * time.Millisecond, // 100 Hz
			Smoothing:      3,
			StartThreshold: 50,
			MinPeak:        50,
			BreakFraction:  0.5,
			BreakWindow:    500 * time.Millisecond,
			DropDuration:   10 * time.Second,
			Trials:         5,
			Areas: AreaConfig{
				XY: 20,
				Z:  30,
			},
		},
		Mock: MockConfig{
			Offset:          8000,
			CountsPerNewton: 420,
			NoiseLevel:      40,
			SampleRate:      10 * time.Millisecond,
			PullRate:        60,
			BreakForce:      600,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Area returns the default cross-section for a print axis, 0 when unknown.
func (t TestConfig) Area(axis string) float64 {
	switch axis {
	case "xy":
		return t.Areas.XY
	case "z":
		return t.Areas.Z
	}
	return 0
}

// ensureDefaults fills fields that must not be zero. Fields where zero
// disables a check are left as loaded.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Calibration.File == "" {
		c.Calibration.File = def.Calibration.File
	}
	if len(c.Calibration.WeightsKg) == 0 {
		c.Calibration.WeightsKg = def.Calibration.WeightsKg
	}
	if c.Calibration.Gravity == 0 {
		c.Calibration.Gravity = def.Calibration.Gravity
	}
	if c.Calibration.WindowSamples == 0 {
		c.Calibration.WindowSamples = def.Calibration.WindowSamples
	}

	if c.Test.OutputDir == "" {
		c.Test.OutputDir = def.Test.OutputDir
	}
	if c.Test.ResultsFile == "" {
		c.Test.ResultsFile = def.Test.ResultsFile
	}
	if c.Test.Smoothing == 0 {
		c.Test.Smoothing = def.Test.Smoothing
	}
	if c.Test.Trials == 0 {
		c.Test.Trials = def.Test.Trials
	}
	if c.Test.Areas.XY == 0 {
		c.Test.Areas.XY = def.Test.Areas.XY
	}
	if c.Test.Areas.Z == 0 {
		c.Test.Areas.Z = def.Test.Areas.Z
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.CountsPerNewton == 0 {
		c.Mock.CountsPerNewton = def.Mock.CountsPerNewton
	}
	if c.Mock.PullRate == 0 {
		c.Mock.PullRate = def.Mock.PullRate
	}
	if c.Mock.BreakForce == 0 {
		c.Mock.BreakForce = def.Mock.BreakForce
	}
}
