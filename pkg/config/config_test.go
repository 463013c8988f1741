package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, []float64{0.0, 7.9, 15.9, 31.4}, cfg.Calibration.WeightsKg)
	assert.Equal(t, StandardGravity, cfg.Calibration.Gravity)
	assert.Equal(t, 200, cfg.Calibration.WindowSamples)
	assert.Equal(t, 3, cfg.Calibration.MaxRetries)
	assert.True(t, cfg.Calibration.ApplyOnHost)
	assert.Equal(t, 10*time.Millisecond, cfg.Test.SampleInterval)
	assert.Equal(t, 0.5, cfg.Test.BreakFraction)
	assert.Equal(t, 500*time.Millisecond, cfg.Test.BreakWindow)
	assert.Equal(t, 10*time.Second, cfg.Test.DropDuration)
	assert.Equal(t, float64(20), cfg.Test.Areas.XY)
	assert.Equal(t, float64(30), cfg.Test.Areas.Z)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/cu.usbmodem103"
  baud_rate: 57600

calibration:
  file: cal.json
  weights_kg: [0, 5, 10]
  window_samples: 50
  max_variance: 400
  max_retries: 5

test:
  sample_interval: 20ms
  break_fraction: 0.3
  break_window: 1s
  drop_duration: 5s
  trials: 3
  areas:
    xy: 24
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "/dev/cu.usbmodem103", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, "cal.json", cfg.Calibration.File)
	assert.Equal(t, []float64{0, 5, 10}, cfg.Calibration.WeightsKg)
	assert.Equal(t, 50, cfg.Calibration.WindowSamples)
	assert.Equal(t, float64(400), cfg.Calibration.MaxVariance)
	assert.Equal(t, 5, cfg.Calibration.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Test.SampleInterval)
	assert.Equal(t, 0.3, cfg.Test.BreakFraction)
	assert.Equal(t, time.Second, cfg.Test.BreakWindow)
	assert.Equal(t, 5*time.Second, cfg.Test.DropDuration)
	assert.Equal(t, 3, cfg.Test.Trials)
	assert.Equal(t, float64(24), cfg.Test.Areas.XY)
	assert.Equal(t, float64(30), cfg.Test.Areas.Z) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("serial:\n  port: \"/dev/ttyUSB1\"\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)              // default
	assert.Equal(t, "calibration.json", cfg.Calibration.File) // default
	assert.Equal(t, 5, cfg.Test.Trials)                       // default
}

func TestLoad_ExplicitZeros(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	yamlContent := `
calibration:
  max_variance: 0
  max_retries: 0
test:
  break_fraction: 0
  break_window: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Calibration.MaxVariance)
	assert.Zero(t, cfg.Calibration.MaxRetries)
	assert.Zero(t, cfg.Test.BreakFraction)
	assert.Zero(t, cfg.Test.BreakWindow)
	assert.Equal(t, 200, cfg.Calibration.WindowSamples) // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Test.BreakWindow = 750 * time.Millisecond

	path := t.TempDir() + "/config.yaml"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 750*time.Millisecond, loaded.Test.BreakWindow)
	assert.Equal(t, cfg.Calibration.WeightsKg, loaded.Calibration.WeightsKg)
}

func TestTestConfig_Area(t *testing.T) {
	cfg := Default()

	assert.Equal(t, float64(20), cfg.Test.Area("xy"))
	assert.Equal(t, float64(30), cfg.Test.Area("z"))
	assert.Equal(t, float64(0), cfg.Test.Area("yz"))
}
