package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/pkg/frame"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.Empty(t, cfg.Validate(), "preset %s", name)
	}
	assert.Nil(t, GetPreset("4k"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "device default resolution", mutate: func(c *Config) { c.Width, c.Height = 0, 0 }},
		{name: "negative device", mutate: func(c *Config) { c.DeviceID = -1 }, errs: 1},
		{name: "tiny width", mutate: func(c *Config) { c.Width = 8 }, errs: 1},
		{name: "unknown format", mutate: func(c *Config) { c.Format = frame.FormatUnknown }, errs: 1},
		{name: "interval too short", mutate: func(c *Config) { c.SampleInterval = time.Millisecond }, errs: 1},
		{name: "everything wrong", mutate: func(c *Config) {
			c.DeviceID = -1
			c.Height = 99999
			c.SampleInterval = 0
		}, errs: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Len(t, cfg.Validate(), tc.errs)
		})
	}
}

func TestManagerUpdateConfig(t *testing.T) {
	m := NewManager()

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}

	err := m.UpdateConfig(map[string]any{
		"preset":          PresetLegacy,
		"sample_interval": "250ms",
		"device_id":       float64(2),
	})
	require.NoError(t, err)

	got := m.GetConfig()
	assert.Equal(t, 320, got.Width)
	assert.Equal(t, frame.GRAY8, got.Format)
	assert.Equal(t, 250*time.Millisecond, got.SampleInterval)
	assert.Equal(t, 2, got.DeviceID)
	assert.Equal(t, got, applied)
}

func TestManagerRejectsInvalid(t *testing.T) {
	m := NewManager()
	before := m.GetConfig()

	assert.Error(t, m.UpdateConfig(map[string]any{"preset": "nope"}))
	assert.Error(t, m.UpdateConfig(map[string]any{"format": "rgba"}))
	assert.Error(t, m.UpdateConfig(map[string]any{"sample_interval": 0}))
	assert.Equal(t, before, m.GetConfig())
}
