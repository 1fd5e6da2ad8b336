package qhy

import (
	"errors"
	"testing"
	"time"
)

func openSim(t *testing.T, cfg SimConfig) (*SimDriver, Device) {
	t.Helper()
	driver := NewSimDriver(cfg)
	if err := driver.InitResource(); err != nil {
		t.Fatalf("init resource: %v", err)
	}
	device, err := driver.Open(cfg.DeviceID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = device.Close() })
	return driver, device
}

func smallSim() SimConfig {
	return SimConfig{
		DeviceID:     "QHY600M-SIM",
		Width:        32,
		Height:       16,
		AmbientC:     20,
		CoolingSpanC: 45,
	}
}

func TestSimDriver_OpenUnknownDevice(t *testing.T) {
	t.Parallel()

	driver := NewSimDriver(smallSim())
	if _, err := driver.Open("QHY600M-OTHER"); err == nil {
		t.Fatal("expected error for unknown device id")
	}
}

func TestSimDriver_FailureInjection(t *testing.T) {
	t.Parallel()

	driver, device := openSim(t, smallSim())

	driver.FailOn("SetParam")
	if err := device.SetParam(ControlGain, 56); err == nil {
		t.Fatal("expected injected SetParam failure")
	}
	driver.ClearFailure("SetParam")
	if err := device.SetParam(ControlGain, 56); err != nil {
		t.Fatalf("SetParam after clear: %v", err)
	}
}

func TestSimDriver_LiveFrameGating(t *testing.T) {
	t.Parallel()

	cfg := smallSim()
	cfg.FramePeriod = 30 * time.Millisecond
	_, device := openSim(t, cfg)

	buf := make([]uint16, cfg.Width*cfg.Height)

	// No live capture running yet.
	if err := device.GetLiveFrame(buf); !errors.Is(err, ErrFrameNotReady) {
		t.Fatalf("expected ErrFrameNotReady before BeginLive, got %v", err)
	}

	if err := device.BeginLive(); err != nil {
		t.Fatalf("begin live: %v", err)
	}
	if err := device.GetLiveFrame(buf); !errors.Is(err, ErrFrameNotReady) {
		t.Fatalf("expected ErrFrameNotReady within frame period, got %v", err)
	}

	time.Sleep(cfg.FramePeriod + 10*time.Millisecond)
	if err := device.GetLiveFrame(buf); err != nil {
		t.Fatalf("frame should be ready after frame period: %v", err)
	}
}

func TestSimDriver_SingleFrameRequiresExposure(t *testing.T) {
	t.Parallel()

	cfg := smallSim()
	_, device := openSim(t, cfg)

	buf := make([]uint16, cfg.Width*cfg.Height)
	if err := device.GetSingleFrame(buf); err == nil {
		t.Fatal("expected error without a triggered exposure")
	}

	if err := device.ExposeSingleFrame(); err != nil {
		t.Fatalf("expose: %v", err)
	}
	if err := device.GetSingleFrame(buf); err != nil {
		t.Fatalf("download: %v", err)
	}
	// One download per exposure.
	if err := device.GetSingleFrame(buf); err == nil {
		t.Fatal("expected error after the exposure was consumed")
	}
}

func TestSimDriver_FramesDiffer(t *testing.T) {
	t.Parallel()

	cfg := smallSim()
	_, device := openSim(t, cfg)

	first := make([]uint16, cfg.Width*cfg.Height)
	second := make([]uint16, cfg.Width*cfg.Height)

	if err := device.BeginLive(); err != nil {
		t.Fatalf("begin live: %v", err)
	}
	if err := device.GetLiveFrame(first); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if err := device.GetLiveFrame(second); err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if first[0] == second[0] {
		t.Fatal("consecutive frames should carry distinct sequence offsets")
	}
}

func TestSimDriver_CoolingPullsTemperatureDown(t *testing.T) {
	t.Parallel()

	driver, device := openSim(t, smallSim())

	if err := device.SetParam(ControlManualPWM, 255); err != nil {
		t.Fatalf("set pwm: %v", err)
	}
	driver.SetTemperature(20)

	time.Sleep(50 * time.Millisecond)
	if temp := device.GetParam(ControlCurTemp); temp >= 20 {
		t.Fatalf("temperature should fall under full cooler power, got %v", temp)
	}
}
