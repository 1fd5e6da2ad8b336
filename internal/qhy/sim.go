package qhy

import (
	"fmt"
	"sync"
	"time"
)

// SimConfig controls the simulated camera.
type SimConfig struct {
	DeviceID string
	Width    int
	Height   int

	// AmbientC is the sensor temperature with the cooler off.
	AmbientC float64
	// CoolingSpanC is how far below ambient the sensor settles at full PWM.
	CoolingSpanC float64

	// FramePeriod is the interval at which streamed frames become ready.
	// Zero means frames are always ready immediately.
	FramePeriod time.Duration
}

// DefaultSimConfig mimics a QHY600 at room temperature.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		DeviceID:     "QHY600M-SIM",
		Width:        9600,
		Height:       6422,
		AmbientC:     20,
		CoolingSpanC: 45,
	}
}

// SimDriver is an in-process stand-in for the vendor SDK. It supports the
// full Driver/Device surface, simple first-order cooling physics, and
// per-operation failure injection for tests.
//
// Unlike the real SDK it tolerates concurrent calls, so tests that violate
// the lock discipline fail on semantics rather than memory corruption.
type SimDriver struct {
	cfg SimConfig

	mu          sync.Mutex
	resourceUp  bool
	opened      bool
	failures    map[string]error
	uvloStatus  float64
	temperature float64
	lastTempAt  time.Time
	params      map[Control]float64

	streamMode bool
	liveActive bool
	exposed    bool
	frameSeq   uint16
	nextFrame  time.Time
}

// NewSimDriver creates a simulated camera with the given config.
func NewSimDriver(cfg SimConfig) *SimDriver {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1920, 1080
	}
	return &SimDriver{
		cfg:         cfg,
		failures:    make(map[string]error),
		temperature: cfg.AmbientC,
		lastTempAt:  time.Now(),
		params: map[Control]float64{
			ControlCooler: cfg.AmbientC,
		},
	}
}

// FailOn makes the named operation return an error until cleared.
// Operation names match the Device/Driver method names.
func (s *SimDriver) FailOn(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = fmt.Errorf("qhy: simulated %s failure (status 0xFFFFFFFF)", op)
}

// ClearFailure removes an injected failure.
func (s *SimDriver) ClearFailure(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

// SetUVLOStatus sets the value returned by the UVLO status register.
func (s *SimDriver) SetUVLOStatus(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uvloStatus = v
}

// SetTemperature overrides the simulated sensor temperature.
func (s *SimDriver) SetTemperature(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = t
	s.lastTempAt = time.Now()
}

func (s *SimDriver) fail(op string) error {
	return s.failures[op]
}

// --- Driver ---

func (s *SimDriver) SDKVersion() (SDKVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SDKVersion"); err != nil {
		return SDKVersion{}, err
	}
	return SDKVersion{Year: 24, Month: 1, Day: 2, Subday: 0}, nil
}

func (s *SimDriver) InitResource() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InitResource"); err != nil {
		return err
	}
	s.resourceUp = true
	return nil
}

func (s *SimDriver) ReleaseResource() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resourceUp = false
	return nil
}

func (s *SimDriver) Scan() int {
	return 1
}

func (s *SimDriver) DeviceID(index int) (string, error) {
	if index != 0 {
		return "", fmt.Errorf("qhy: no camera at index %d", index)
	}
	return s.cfg.DeviceID, nil
}

func (s *SimDriver) Open(id string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Open"); err != nil {
		return nil, err
	}
	if id != s.cfg.DeviceID {
		return nil, fmt.Errorf("qhy: unknown device %q", id)
	}
	s.opened = true
	return (*simDevice)(s), nil
}

// simDevice implements Device against the shared SimDriver state.
type simDevice SimDriver

func (d *simDevice) drv() *SimDriver { return (*SimDriver)(d) }

func (d *simDevice) Close() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	s.liveActive = false
	return nil
}

func (d *simDevice) FirmwareVersion() ([3]byte, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FirmwareVersion"); err != nil {
		return [3]byte{}, err
	}
	// Packed 2023-10-05: year nibble 7 (+0x10 => 23), month 10, day 5.
	return [3]byte{0x7a, 5, 0}, nil
}

func (d *simDevice) SetReadMode(mode int) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetReadMode"); err != nil {
		return err
	}
	if mode < 0 || mode > 4 {
		return fmt.Errorf("qhy: invalid read mode %d", mode)
	}
	return nil
}

func (d *simDevice) ReadModeName(mode int) (string, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ReadModeName"); err != nil {
		return "", err
	}
	names := []string{"PhotoGraphic DSO", "High Gain", "Extend Fullwell", "Extend Fullwell 2CMS", "Stack Mode"}
	if mode < 0 || mode >= len(names) {
		return "", fmt.Errorf("qhy: invalid read mode %d", mode)
	}
	return names[mode], nil
}

func (d *simDevice) SetStreamMode(stream bool) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetStreamMode"); err != nil {
		return err
	}
	s.streamMode = stream
	return nil
}

func (d *simDevice) Init() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail("Init")
}

func (d *simDevice) ChipInfo() (ChipInfo, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ChipInfo"); err != nil {
		return ChipInfo{}, err
	}
	return ChipInfo{
		ChipWidthMM:   36.0,
		ChipHeightMM:  24.0,
		ImageWidth:    s.cfg.Width,
		ImageHeight:   s.cfg.Height,
		PixelWidthUM:  3.76,
		PixelHeightUM: 3.76,
		BitsPerPixel:  16,
	}, nil
}

func (d *simDevice) EffectiveArea() (EffectiveArea, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("EffectiveArea"); err != nil {
		return EffectiveArea{}, err
	}
	// A modest overscan margin on the left/top edges.
	return EffectiveArea{X: 24, Y: 12, Width: s.cfg.Width - 24, Height: s.cfg.Height - 12}, nil
}

// advanceTemperature steps the first-order cooling model: the sensor moves
// toward ambient minus the PWM-proportional cooling depth at ~0.5 degC/s.
func (s *SimDriver) advanceTemperature() {
	now := time.Now()
	dt := now.Sub(s.lastTempAt).Seconds()
	s.lastTempAt = now
	target := s.cfg.AmbientC - s.params[ControlManualPWM]/255*s.cfg.CoolingSpanC
	step := 0.5 * dt
	switch {
	case s.temperature > target+step:
		s.temperature -= step
	case s.temperature < target-step:
		s.temperature += step
	default:
		s.temperature = target
	}
}

func (d *simDevice) GetParam(c Control) float64 {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c {
	case ControlCurTemp:
		s.advanceTemperature()
		return s.temperature
	case ControlCurPWM:
		return s.params[ControlManualPWM]
	case ControlUVLO:
		return s.uvloStatus
	default:
		return s.params[c]
	}
}

func (d *simDevice) SetParam(c Control, value float64) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetParam"); err != nil {
		return err
	}
	s.params[c] = value
	return nil
}

func (d *simDevice) SetResolution(x, y, width, height int) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetResolution"); err != nil {
		return err
	}
	if x != 0 || y != 0 || width != s.cfg.Width || height != s.cfg.Height {
		return fmt.Errorf("qhy: unsupported readout region %dx%d+%d+%d", width, height, x, y)
	}
	return nil
}

func (d *simDevice) SetBitsMode(bits int) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetBitsMode"); err != nil {
		return err
	}
	if bits != 16 {
		return fmt.Errorf("qhy: unsupported bit depth %d", bits)
	}
	return nil
}

func (d *simDevice) BeginLive() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BeginLive"); err != nil {
		return err
	}
	s.liveActive = true
	s.nextFrame = time.Now().Add(s.cfg.FramePeriod)
	return nil
}

func (d *simDevice) StopLive() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveActive = false
	return nil
}

func (d *simDevice) CancelExposingAndReadout() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposed = false
	return nil
}

func (d *simDevice) ExposeSingleFrame() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ExposeSingleFrame"); err != nil {
		return err
	}
	s.exposed = true
	return nil
}

// fillFrame writes a deterministic ramp with a per-frame sequence offset so
// consumers can tell frames apart.
func (s *SimDriver) fillFrame(buf []uint16) {
	s.frameSeq++
	for i := range buf {
		buf[i] = uint16(i) + s.frameSeq
	}
}

func (d *simDevice) GetSingleFrame(buf []uint16) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetSingleFrame"); err != nil {
		return err
	}
	if !s.exposed {
		return fmt.Errorf("qhy: no exposure triggered")
	}
	s.exposed = false
	s.fillFrame(buf)
	return nil
}

func (d *simDevice) GetLiveFrame(buf []uint16) error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetLiveFrame"); err != nil {
		return err
	}
	if !s.liveActive {
		return ErrFrameNotReady
	}
	if now := time.Now(); now.Before(s.nextFrame) {
		return ErrFrameNotReady
	}
	s.nextFrame = time.Now().Add(s.cfg.FramePeriod)
	s.fillFrame(buf)
	return nil
}

func (d *simDevice) PreciseExposureInfo() (ExposureInfo, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("PreciseExposureInfo"); err != nil {
		return ExposureInfo{}, err
	}
	return ExposureInfo{
		PixelPeriodPS:    13800,
		LinePeriodNS:     20400,
		FramePeriodUS:    uint32(s.cfg.Height) * 21,
		ClocksPerLine:    1480,
		LinesPerFrame:    uint32(s.cfg.Height),
		ActualExposureUS: uint32(s.params[ControlExposure]),
		IsLongExposure:   s.params[ControlExposure] > 1e6,
	}, nil
}

func (d *simDevice) RollingShutterEndOffset(row int) (float64, error) {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RollingShutterEndOffset"); err != nil {
		return 0, err
	}
	return float64(row)*20.4 + 183.0, nil
}

func (d *simDevice) ResetUVLOError() error {
	s := d.drv()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uvloStatus = 0
	return nil
}
