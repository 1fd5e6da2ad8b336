// Package qhy defines the narrow surface of the QHY vendor SDK that the
// daemon consumes, plus a simulated implementation for development and tests.
//
// The real SDK is a C library with no internal locking; callers must
// serialize every call on an open device through a single mutex.
package qhy

import "errors"

// Control identifies a numeric camera parameter (CONTROL_ID in the SDK).
type Control int

const (
	ControlGain       Control = 6
	ControlOffset     Control = 7
	ControlExposure   Control = 8  // microseconds
	ControlUSBTraffic Control = 12 // alters HBLANK and therefore frame timing
	ControlCurTemp    Control = 14
	ControlCurPWM     Control = 15
	ControlManualPWM  Control = 16
	ControlCooler     Control = 18 // closed-loop target temperature
	ControlGPS        Control = 36
	ControlUVLO       Control = 67
)

// UVLO status register values that indicate a tripped under-voltage lockout.
var UVLOErrorValues = []int{2, 3, 9}

// ErrFrameNotReady is returned by GetLiveFrame when no new frame has
// finished reading out yet. Callers poll until nil or cancellation.
var ErrFrameNotReady = errors.New("qhy: live frame not ready")

// ChipInfo describes the sensor as reported by the SDK.
type ChipInfo struct {
	ChipWidthMM   float64
	ChipHeightMM  float64
	ImageWidth    int
	ImageHeight   int
	PixelWidthUM  float64
	PixelHeightUM float64
	BitsPerPixel  int
}

// EffectiveArea is the active (non-overscan) pixel rectangle.
type EffectiveArea struct {
	X      int
	Y      int
	Width  int
	Height int
}

// ExposureInfo carries the per-sequence frame timing reported by the SDK.
type ExposureInfo struct {
	PixelPeriodPS    uint32
	LinePeriodNS     uint32
	FramePeriodUS    uint32
	ClocksPerLine    uint32
	LinesPerFrame    uint32
	ActualExposureUS uint32
	IsLongExposure   bool
}

// SDKVersion is the library release date plus sub-release.
type SDKVersion struct {
	Year   int // two digit
	Month  int
	Day    int
	Subday int
}

// Driver is the entry point to the vendor SDK: library lifecycle and
// device enumeration.
type Driver interface {
	// SDKVersion queries the library release identifiers.
	SDKVersion() (SDKVersion, error)

	// InitResource initializes the SDK resource pool. Must be called
	// before Scan, and balanced by ReleaseResource.
	InitResource() error
	ReleaseResource() error

	// Scan enumerates attached cameras and returns how many were found.
	Scan() int

	// DeviceID returns the ID string of the camera at the given
	// enumeration index.
	DeviceID(index int) (string, error)

	// Open opens the camera with the given device ID.
	Open(id string) (Device, error)
}

// Device is an open camera. All methods map 1:1 onto SDK calls against the
// underlying handle and are NOT safe for concurrent use.
type Device interface {
	Close() error

	// FirmwareVersion returns the raw firmware version bytes
	// (packed year/month, day, unused).
	FirmwareVersion() ([3]byte, error)

	SetReadMode(mode int) error
	ReadModeName(mode int) (string, error)
	SetStreamMode(stream bool) error

	// Init performs the SDK hardware initialization for the currently
	// selected read and stream modes.
	Init() error

	ChipInfo() (ChipInfo, error)
	EffectiveArea() (EffectiveArea, error)

	// GetParam reads a numeric parameter. The SDK call cannot fail;
	// unsupported parameters read as a sentinel the caller ignores.
	GetParam(c Control) float64
	SetParam(c Control, value float64) error

	SetResolution(x, y, width, height int) error
	SetBitsMode(bits int) error

	BeginLive() error
	StopLive() error
	CancelExposingAndReadout() error

	// ExposeSingleFrame triggers one exposure in single-shot mode.
	ExposeSingleFrame() error

	// GetSingleFrame blocks until the triggered exposure has been
	// downloaded into buf (len must be width*height).
	GetSingleFrame(buf []uint16) error

	// GetLiveFrame downloads the next streamed frame into buf, or returns
	// ErrFrameNotReady if none has completed yet.
	GetLiveFrame(buf []uint16) error

	PreciseExposureInfo() (ExposureInfo, error)

	// RollingShutterEndOffset returns the readout end offset in
	// microseconds for the given row.
	RollingShutterEndOffset(row int) (float64, error)

	// ResetUVLOError clears a tripped under-voltage lockout flag.
	ResetUVLOError() error
}
