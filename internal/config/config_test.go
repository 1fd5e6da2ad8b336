package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `
camera_device_id: QHY600M-b5c4d1234567
camera_id: TEST
mode: 1
gain: 56
offset: 24
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.CoolerUpdateDelay != 10*time.Second {
		t.Fatalf("cooler_update_delay=%v", cfg.CoolerUpdateDelay)
	}
	if cfg.CoolerPWMStep != 5 {
		t.Fatalf("cooler_pwm_step=%d", cfg.CoolerPWMStep)
	}
	if cfg.FrameQueueDepth != 16 {
		t.Fatalf("frame_queue_depth=%d", cfg.FrameQueueDepth)
	}
	if !cfg.Stream {
		t.Fatal("stream should default to true")
	}
	if cfg.CoolerSetpoint != nil {
		t.Fatalf("cooler_setpoint should default to nil, got %v", *cfg.CoolerSetpoint)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("port=%q log_level=%q", cfg.Port, cfg.LogLevel)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `
camera_device_id: QHY600M-b5c4d1234567
camera_id: CAM1
mode: 2
gain: 80
offset: 100
stream: false
use_gpsbox: true
cooler_setpoint: -15.5
cooler_update_delay: 5s
cooler_pwm_step: 10
expcount_path: /var/tmp/expcount.json
frame_queue_depth: 4
db_path: /var/tmp/camd.db
port: "9090"
log_level: debug
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != 2 || cfg.Gain != 80 || cfg.Offset != 100 {
		t.Fatalf("mode/gain/offset %d/%d/%d", cfg.Mode, cfg.Gain, cfg.Offset)
	}
	if cfg.Stream || !cfg.UseGPSBox {
		t.Fatalf("stream=%v use_gpsbox=%v", cfg.Stream, cfg.UseGPSBox)
	}
	if cfg.CoolerSetpoint == nil || *cfg.CoolerSetpoint != -15.5 {
		t.Fatalf("cooler_setpoint=%v", cfg.CoolerSetpoint)
	}
	if cfg.CoolerUpdateDelay != 5*time.Second {
		t.Fatalf("cooler_update_delay=%v", cfg.CoolerUpdateDelay)
	}
	if cfg.Port != "9090" || cfg.LogLevel != "debug" {
		t.Fatalf("port=%q log_level=%q", cfg.Port, cfg.LogLevel)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"missing_device_id", `
camera_id: TEST
mode: 1
`},
		{"mode_out_of_range", `
camera_device_id: X
mode: 5
`},
		{"gain_out_of_range", `
camera_device_id: X
mode: 1
gain: 101
`},
		{"offset_out_of_range", `
camera_device_id: X
mode: 1
offset: 1001
`},
		{"setpoint_out_of_range", `
camera_device_id: X
mode: 1
cooler_setpoint: -40
`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := writeConfig(t, tc.body)
			if _, err := Load(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
