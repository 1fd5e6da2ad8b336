package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
)

// livePollInterval is how long the sequencer yields between live-frame poll
// attempts. The driver lock is released for the whole interval so the
// control goroutine can run status and cooler calls.
const livePollInterval = 5 * time.Millisecond

var errCameraNotInitialized = errors.New("camera not initialized")

// settings holds the tunable acquisition parameters shared between the
// control loop (writer) and the sequencer goroutine (reader).
type settings struct {
	mu       sync.RWMutex
	exposure float64 // seconds
	gain     int
	offset   int
	stream   bool
}

func (s *settings) Exposure() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exposure
}

func (s *settings) snapshot() (exposure float64, gain, offset int, stream bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exposure, s.gain, s.offset, s.stream
}

// Sequencer runs exposure sequences on a dedicated goroutine and pushes
// tagged frames to the frame queue.
type Sequencer struct {
	session  *Session
	cooler   *Cooler
	log      *logger.Logger
	counter  *Counter
	settings *settings
	events   EventRecorder
	frames   chan<- *models.FrameRecord

	// externalStop is the stop signal shared with the downstream
	// processing stage; observed at the same safe points as stop.
	externalStop *atomic.Bool

	frameLimit int
	frameCount atomic.Int64

	// stop requests a cooperative exit at the next frame boundary.
	stop atomic.Bool

	// exposureStart is the wall-clock start of the current frame, as
	// unix nanoseconds, for exposure progress estimation.
	exposureStart atomic.Int64
}

func newSequencer(session *Session, cooler *Cooler, log *logger.Logger, counter *Counter,
	settings *settings, events EventRecorder, frames chan<- *models.FrameRecord,
	externalStop *atomic.Bool) *Sequencer {
	return &Sequencer{
		session:      session,
		cooler:       cooler,
		log:          log,
		counter:      counter,
		settings:     settings,
		events:       events,
		frames:       frames,
		externalStop: externalStop,
	}
}

func (s *Sequencer) stopRequested() bool {
	return s.stop.Load() || s.externalStop.Load()
}

// withDevice runs fn with the driver lock held, or returns an error if the
// session has no open device.
func (s *Sequencer) withDevice(fn func(qhy.Device) error) error {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	if s.session.device == nil {
		return errCameraNotInitialized
	}
	return fn(s.session.device)
}

// push hands a completed frame to the queue, yielding to stop checks while
// the consumer catches up. Returns false if a stop arrived before the frame
// could be queued; the frame is not emitted in that case.
func (s *Sequencer) push(record *models.FrameRecord) bool {
	for {
		select {
		case s.frames <- record:
			return true
		default:
			if s.stopRequested() {
				return false
			}
			time.Sleep(livePollInterval)
		}
	}
}

// run executes one exposure sequence until the frame limit is reached or a
// stop is requested. On every exit path it tears down live capture,
// persists the exposure counter and clears the stop flag.
func (s *Sequencer) run(quiet bool) {
	_, _, _, streaming := s.settings.snapshot()

	defer func() {
		if streaming {
			if err := s.withDevice(func(d qhy.Device) error {
				if err := d.CancelExposingAndReadout(); err != nil {
					return err
				}
				return d.StopLive()
			}); err != nil {
				s.log.Warnw("failed to stop live capture", "err", err)
			}
		}

		if err := s.counter.Persist(); err != nil {
			s.log.Errorw("failed to persist exposure counter", "err", err)
		}

		s.stop.Store(false)

		if !quiet {
			s.log.Infow("exposure sequence complete", "frames", s.frameCount.Load())
			s.events.Record(context.Background(), models.EventSequence, "Exposure sequence complete",
				map[string]any{"frames": s.frameCount.Load()})
		}
	}()

	exposure := s.settings.Exposure()
	if err := s.withDevice(func(d qhy.Device) error {
		return d.SetParam(qhy.ControlExposure, float64(int64(1e6*exposure)))
	}); err != nil {
		s.log.Errorw("failed to set exposure time", "err", err)
		return
	}

	if streaming {
		if err := s.withDevice(func(d qhy.Device) error { return d.BeginLive() }); err != nil {
			s.log.Errorw("failed to start exposures", "err", err)
			return
		}
	}

	// Frame timing is constant for the sequence; query it once.
	var timing qhy.ExposureInfo
	var readoutOffsetUS float64
	_ = s.withDevice(func(d qhy.Device) error {
		var err error
		timing, err = d.PreciseExposureInfo()
		return err
	})
	_ = s.withDevice(func(d qhy.Device) error {
		var err error
		readoutOffsetUS, err = d.RollingShutterEndOffset(0)
		return err
	})

	width := s.session.readoutWidth
	height := s.session.readoutHeight

	for !s.stopRequested() {
		s.exposureStart.Store(time.Now().UnixNano())

		if !streaming {
			if err := s.withDevice(func(d qhy.Device) error { return d.ExposeSingleFrame() }); err != nil {
				s.log.Errorw("failed to start exposure", "err", err)
				break
			}
		}

		buf := make([]uint16, width*height)
		if streaming {
			// Poll until a frame completes, releasing the lock and
			// checking for cancellation between attempts.
			for {
				err := s.withDevice(func(d qhy.Device) error { return d.GetLiveFrame(buf) })
				if err == nil {
					break
				}
				if s.stopRequested() {
					break
				}
				time.Sleep(livePollInterval)
			}
		} else {
			if err := s.withDevice(func(d qhy.Device) error { return d.GetSingleFrame(buf) }); err != nil {
				s.log.Errorw("failed to download frame", "err", err)
				break
			}
		}

		// A stop observed mid-download exits without a partial frame.
		if s.stopRequested() {
			break
		}

		readEnd := time.Now()
		requestedExposure, gain, offset, _ := s.settings.snapshot()
		cooler := s.cooler.Snapshot()
		count, reference := s.counter.Value()

		record := &models.FrameRecord{
			FrameID:                uuid.NewString(),
			Data:                   buf,
			RequestedExposure:      requestedExposure,
			Exposure:               float64(timing.ActualExposureUS) / 1e6,
			LinePeriod:             float64(timing.LinePeriodNS) / 1e9,
			FramePeriod:            float64(timing.FramePeriodUS) / 1e6,
			ReadoutOffset:          readoutOffsetUS,
			Mode:                   s.session.cfg.Mode,
			ModeName:               s.session.modeName,
			Gain:                   gain,
			Offset:                 offset,
			Stream:                 streaming,
			ReadEndTime:            readEnd,
			SDKVersion:             s.session.sdkVersion,
			FirmwareVersion:        s.session.firmwareVersion,
			CoolerMode:             cooler.Mode,
			CoolerTemperature:      cooler.Temperature,
			CoolerPWM:              cooler.PWM,
			CoolerSetpoint:         cooler.Setpoint,
			WinX:                   1,
			WinY:                   1,
			WinWidth:               width,
			WinHeight:              height,
			ImageX1:                s.session.imageX1,
			ImageX2:                s.session.imageX2,
			ImageY1:                s.session.imageY1,
			ImageY2:                s.session.imageY2,
			ExposureCount:          count,
			ExposureCountReference: reference,
		}

		if !s.push(record) {
			break
		}

		s.counter.Increment()
		done := s.frameCount.Add(1)

		if s.frameLimit > 0 && int(done) >= s.frameLimit {
			s.stop.Store(true)
		}
	}
}
