package camera

import (
	"fmt"
	"sync"

	"github.com/rockit-astro/qhy-camd/internal/config"
	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
)

// Session owns the open camera device and the per-session facts read during
// initialization. Every driver call from any goroutine must hold mu: the
// vendor SDK has no internal locking.
type Session struct {
	cfg    *config.Config
	log    *logger.Logger
	driver qhy.Driver

	// mu serializes all access to device. It is held only around
	// individual calls or closely related call groups, never across a
	// wait for frame data.
	mu     sync.Mutex
	device qhy.Device

	sdkVersion      string
	firmwareVersion string
	modeName        string

	readoutWidth  int
	readoutHeight int

	// Effective-area bounds, 1-indexed inclusive. imageY1 skips one extra
	// row when GPS timestamping is enabled (the GPS marker row).
	imageX1, imageX2, imageY1, imageY2 int
}

// NewSession creates an uninitialized session for the given driver.
func NewSession(cfg *config.Config, log *logger.Logger, driver qhy.Driver) *Session {
	return &Session{cfg: cfg, log: log, driver: driver}
}

// openDevice enumerates attached cameras and opens the one matching the
// configured device ID. Returns nil if the device is not found.
func (s *Session) openDevice() (qhy.Device, error) {
	count := s.driver.Scan()
	s.log.Infow("scanned for cameras", "found", count)

	for i := 0; i < count; i++ {
		id, err := s.driver.DeviceID(i)
		if err != nil {
			continue
		}
		s.log.Infow("found camera", "device_id", id)
		if id == s.cfg.CameraDeviceID {
			return s.driver.Open(id)
		}
	}
	return nil, nil
}

// Initialize connects to the SDK, opens the configured camera and programs
// the session-constant readout parameters. On any failure the device is
// closed again and Failed (or CameraNotFound) is returned; the session
// stores its facts only on full success.
func (s *Session) Initialize() models.CommandStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var device qhy.Device
	initialized := false
	defer func() {
		if !initialized {
			if device != nil {
				if err := device.Close(); err != nil {
					s.log.Warnw("failed to close camera during cleanup", "err", err)
				}
			}
			s.log.Errorw("failed to initialize camera", "device_id", s.cfg.CameraDeviceID)
		} else {
			s.log.Infow("initialized camera", "device_id", s.cfg.CameraDeviceID)
		}
		// The SDK tolerates releasing the scan resources while a camera
		// remains open, so this runs on every exit path.
		if err := s.driver.ReleaseResource(); err != nil {
			s.log.Warnw("failed to release driver resources", "err", err)
		}
	}()

	sdk, err := s.driver.SDKVersion()
	if err != nil {
		s.log.Errorw("failed to query SDK version", "err", err)
		return models.Failed
	}
	s.sdkVersion = fmt.Sprintf("20%02d%02d%02d_%d", sdk.Year, sdk.Month, sdk.Day, sdk.Subday)

	if err := s.driver.InitResource(); err != nil {
		s.log.Errorw("failed to initialize driver resources", "err", err)
		return models.Failed
	}

	device, err = s.openDevice()
	if err != nil {
		s.log.Errorw("failed to open camera", "err", err)
		return models.Failed
	}
	if device == nil {
		s.log.Errorw("camera not found", "device_id", s.cfg.CameraDeviceID)
		return models.CameraNotFound
	}

	fwv, err := device.FirmwareVersion()
	if err != nil {
		s.log.Errorw("failed to query firmware version", "err", err)
		return models.Failed
	}
	s.firmwareVersion = decodeFirmwareVersion(fwv)

	if err := device.SetReadMode(s.cfg.Mode); err != nil {
		s.log.Errorw("failed to set read mode", "mode", s.cfg.Mode, "err", err)
		return models.Failed
	}

	s.modeName, err = device.ReadModeName(s.cfg.Mode)
	if err != nil {
		s.log.Errorw("failed to query read mode name", "mode", s.cfg.Mode, "err", err)
		return models.Failed
	}

	if err := device.SetStreamMode(true); err != nil {
		s.log.Errorw("failed to set stream mode", "err", err)
		return models.Failed
	}

	if err := device.Init(); err != nil {
		s.log.Errorw("failed to initialize camera hardware", "err", err)
		return models.Failed
	}

	chip, err := device.ChipInfo()
	if err != nil {
		s.log.Errorw("failed to query chip info", "err", err)
		return models.Failed
	}
	s.readoutWidth = chip.ImageWidth
	s.readoutHeight = chip.ImageHeight

	if s.cfg.UseGPSBox {
		if err := device.SetParam(qhy.ControlGPS, 1); err != nil {
			s.log.Errorw("failed to enable GPS box", "err", err)
			return models.Failed
		}
	}

	if err := device.SetParam(qhy.ControlGain, float64(s.cfg.Gain)); err != nil {
		s.log.Errorw("failed to set default gain", "gain", s.cfg.Gain, "err", err)
		return models.Failed
	}
	if err := device.SetParam(qhy.ControlOffset, float64(s.cfg.Offset)); err != nil {
		s.log.Errorw("failed to set default offset", "offset", s.cfg.Offset, "err", err)
		return models.Failed
	}

	// USBTRAFFIC changes the HBLANK behaviour, which impacts the readout
	// timing characteristics. The frame-timing math downstream assumes
	// this exact value; changing it is a breaking change.
	if err := device.SetParam(qhy.ControlUSBTraffic, 0); err != nil {
		s.log.Errorw("failed to set usb traffic", "err", err)
		return models.Failed
	}

	if err := device.SetResolution(0, 0, chip.ImageWidth, chip.ImageHeight); err != nil {
		s.log.Errorw("failed to set readout region", "err", err)
		return models.Failed
	}
	if err := device.SetBitsMode(16); err != nil {
		s.log.Errorw("failed to set 16bit readout", "err", err)
		return models.Failed
	}

	area, err := device.EffectiveArea()
	if err != nil {
		s.log.Errorw("failed to query effective area", "err", err)
		return models.Failed
	}
	s.imageX1 = area.X + 1
	s.imageX2 = area.X + area.Width
	if s.cfg.UseGPSBox {
		s.imageY1 = area.Y + 2
	} else {
		s.imageY1 = 1
	}
	s.imageY2 = area.Y + area.Height

	s.device = device
	initialized = true
	return models.Succeeded
}

// Close disconnects from the camera. Safe to call twice: the device
// reference is cleared after the first close.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return
	}
	if err := s.device.Close(); err != nil {
		s.log.Warnw("failed to close camera", "err", err)
	}
	s.device = nil
}

// decodeFirmwareVersion unpacks the BCD-like firmware date bytes: the high
// nibble of byte 0 is the year (offset by 16 when it reads as single-digit),
// the low nibble the month, byte 1 the day.
func decodeFirmwareVersion(fwv [3]byte) string {
	month := int(fwv[0] & 0x0f)
	day := int(fwv[1])
	year := int(fwv[0] >> 4)
	if year <= 9 {
		year += 0x10
	}
	return fmt.Sprintf("20%d%d%d", year, month, day)
}
