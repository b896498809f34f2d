package camera

import "github.com/teslashibe/go-facerecog/pkg/frame"

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	PresetGray    = "gray"
	PresetColor   = "color"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLegacy:  LegacyConfig(),
		Preset720p:    HD720Config(),
		PresetGray:    GrayConfig(),
		PresetColor:   DefaultConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset720p,
		PresetGray,
		PresetColor,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p color capture. Each sample is ~2.7 MB on the wire.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// GrayConfig returns 640x480 single channel capture.
func GrayConfig() Config {
	cfg := DefaultConfig()
	cfg.Format = frame.GRAY8
	return cfg
}
