package camera

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/config"
	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
)

// testSimConfig keeps frames small so sequences run quickly.
func testSimConfig() qhy.SimConfig {
	return qhy.SimConfig{
		DeviceID:     "QHY600M-TEST",
		Width:        64,
		Height:       48,
		AmbientC:     20,
		CoolingSpanC: 45,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		CameraDeviceID:    "QHY600M-TEST",
		CameraID:          "TEST",
		Mode:              1,
		Gain:              56,
		Offset:            24,
		Stream:            true,
		CoolerUpdateDelay: 10 * time.Second,
		CoolerPWMStep:     5,
		ExposureCountPath: filepath.Join(dir, "expcount.json"),
		FrameQueueDepth:   16,
	}
}

// newTestSession returns an initialized session against the simulator.
func newTestSession(t *testing.T) (*Session, *qhy.SimDriver) {
	t.Helper()
	driver := qhy.NewSimDriver(testSimConfig())
	session := NewSession(testConfig(t), logger.Get(logger.ErrorLevel), driver)
	if status := session.Initialize(); status != models.Succeeded {
		t.Fatalf("session initialize failed: %v", status)
	}
	t.Cleanup(session.Close)
	return session, driver
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
