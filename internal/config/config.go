// Package config loads and validates the daemon configuration from a viper
// config file (configs/config.yml by default).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the validated daemon configuration.
type Config struct {
	// CameraDeviceID is the SDK device ID string to match during
	// enumeration (e.g. "QHY600M-b5c4d1234567890").
	CameraDeviceID string `mapstructure:"camera_device_id"`
	// CameraID is the short site identifier used in logs and headers.
	CameraID string `mapstructure:"camera_id"`

	Mode      int  `mapstructure:"mode"`   // readout mode index, 0-4
	Gain      int  `mapstructure:"gain"`   // 0-100
	Offset    int  `mapstructure:"offset"` // bias, 0-1000
	Stream    bool `mapstructure:"stream"` // streamed frames after startup
	UseGPSBox bool `mapstructure:"use_gpsbox"`

	// CoolerSetpoint is the startup target temperature. Nil leaves the
	// cooler off.
	CoolerSetpoint    *float64      `mapstructure:"cooler_setpoint"`
	CoolerUpdateDelay time.Duration `mapstructure:"cooler_update_delay"`
	CoolerPWMStep     int           `mapstructure:"cooler_pwm_step"`

	ExposureCountPath string `mapstructure:"expcount_path"`
	FrameQueueDepth   int    `mapstructure:"frame_queue_depth"`

	DBPath   string `mapstructure:"db_path"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// Setpoint bounds supported by the cooler hardware, degrees Celsius.
const (
	MinSetpointC = -20.0
	MaxSetpointC = 30.0
)

// Load reads the config file from the given directory and validates it.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")

	v.SetDefault("cooler_update_delay", 10*time.Second)
	v.SetDefault("cooler_pwm_step", 5)
	v.SetDefault("frame_queue_depth", 16)
	v.SetDefault("stream", true)
	v.SetDefault("expcount_path", "expcount.json")
	v.SetDefault("db_path", "qhy-camd.db")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against hardware bounds.
func (c *Config) Validate() error {
	if c.CameraDeviceID == "" {
		return fmt.Errorf("camera_device_id is required")
	}
	if c.Mode < 0 || c.Mode > 4 {
		return fmt.Errorf("mode %d outside supported range 0-4", c.Mode)
	}
	if c.Gain < 0 || c.Gain > 100 {
		return fmt.Errorf("gain %d outside supported range 0-100", c.Gain)
	}
	if c.Offset < 0 || c.Offset > 1000 {
		return fmt.Errorf("offset %d outside supported range 0-1000", c.Offset)
	}
	if c.CoolerSetpoint != nil && (*c.CoolerSetpoint < MinSetpointC || *c.CoolerSetpoint > MaxSetpointC) {
		return fmt.Errorf("cooler_setpoint %.1f outside supported range %.0f..%.0f",
			*c.CoolerSetpoint, MinSetpointC, MaxSetpointC)
	}
	if c.CoolerUpdateDelay <= 0 {
		return fmt.Errorf("cooler_update_delay must be positive")
	}
	if c.CoolerPWMStep < 1 {
		return fmt.Errorf("cooler_pwm_step must be at least 1")
	}
	if c.FrameQueueDepth < 1 {
		return fmt.Errorf("frame_queue_depth must be at least 1")
	}
	return nil
}
