package camera

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/config"
	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
)

// commandWait bounds how long the control loop blocks on the command
// channel before checking the cooler poll cadence.
const commandWait = 1 * time.Second

// EventRecorder appends operator-visible actions to the camera event log.
type EventRecorder interface {
	Record(ctx context.Context, eventType, description string, metadata any)
}

// NopRecorder discards events; used when the event log is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, any) {}

type cmdKind int

const (
	cmdTemperature cmdKind = iota
	cmdStream
	cmdGain
	cmdOffset
	cmdExposure
	cmdStart
	cmdStop
	cmdStatus
	cmdShutdown
)

type request struct {
	kind cmdKind

	temperature *float64
	stream      bool
	gain        int
	offset      int
	exposure    float64
	count       int
	quiet       bool

	reply chan any // buffered; receives models.CommandStatus or models.Status
}

func (r *request) respond(v any) {
	select {
	case r.reply <- v:
	default:
	}
}

// Controller is the session control loop: it owns the device session and
// multiplexes inbound commands, the cooler poll cadence and the acquisition
// lifecycle. All mutating camera operations execute on its goroutine; the
// exported methods are thin request/response wrappers safe for any caller.
type Controller struct {
	cfg      *config.Config
	log      *logger.Logger
	session  *Session
	cooler   *Cooler
	seq      *Sequencer
	settings *settings
	counter  *Counter
	events   EventRecorder

	frames       chan *models.FrameRecord
	externalStop atomic.Bool

	requests chan *request
	done     chan struct{}

	acquiring atomic.Bool
	seqDone   chan struct{}
}

// NewController wires the camera core for the given driver.
func NewController(cfg *config.Config, log *logger.Logger, driver qhy.Driver, events EventRecorder) *Controller {
	if events == nil {
		events = NopRecorder{}
	}
	c := &Controller{
		cfg:      cfg,
		log:      log,
		events:   events,
		frames:   make(chan *models.FrameRecord, cfg.FrameQueueDepth),
		requests: make(chan *request),
		done:     make(chan struct{}),
	}
	c.session = NewSession(cfg, log, driver)
	c.cooler = NewCooler(c.session, log, cfg.CoolerSetpoint, cfg.CoolerPWMStep)
	c.counter = LoadCounter(cfg.ExposureCountPath)
	c.settings = &settings{
		exposure: 1,
		gain:     cfg.Gain,
		offset:   cfg.Offset,
		stream:   true,
	}
	c.seq = newSequencer(c.session, c.cooler, log, c.counter, c.settings, events, c.frames, &c.externalStop)
	return c
}

// Frames is the queue of completed exposures for the downstream pipeline.
func (c *Controller) Frames() <-chan *models.FrameRecord {
	return c.frames
}

// ExternalStop is the stop signal shared with the downstream processing
// stage. Setting it aborts a running sequence at the next frame boundary.
func (c *Controller) ExternalStop() *atomic.Bool {
	return &c.externalStop
}

// Run initializes the camera and services commands until a shutdown command
// arrives or ctx is cancelled. A failed initialization returns immediately;
// any later internal fault is recovered, answered with Failed, and still
// followed by an orderly camera shutdown.
func (c *Controller) Run(ctx context.Context) (err error) {
	defer close(c.done)

	var current *request
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("camera control loop fault", "panic", r, "stack", string(debug.Stack()))
			if current != nil {
				current.respond(models.Failed)
			}
			c.shutdown(ctx)
			err = fmt.Errorf("camera control loop fault: %v", r)
		}
	}()

	if status := c.session.Initialize(); status != models.Succeeded {
		c.events.Record(ctx, models.EventError, "Failed to initialize camera",
			map[string]any{"status": status.String()})
		return fmt.Errorf("camera initialization failed: %s", status)
	}
	c.events.Record(ctx, models.EventInit, "Initialized camera", map[string]any{
		"device_id": c.cfg.CameraDeviceID,
		"sdk":       c.session.sdkVersion,
		"firmware":  c.session.firmwareVersion,
		"mode":      c.session.modeName,
	})

	// Clear any UVLO errors left from a power fault, then take the first
	// cooler reading before accepting commands.
	c.cooler.ResetUVLO()
	c.cooler.Update()

	if !c.cfg.Stream {
		c.setStreaming(ctx, false, true)
	}

	lastPoll := time.Now()
	for {
		dirty := false
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return nil

		case req := <-c.requests:
			current = req
			quit := c.dispatch(ctx, req, &dirty)
			current = nil
			if quit {
				return nil
			}

		case <-time.After(commandWait):
		}

		if dirty || time.Since(lastPoll) > c.cfg.CoolerUpdateDelay {
			c.cooler.Update()
			lastPoll = time.Now()
		}
	}
}

// dispatch executes one command on the control goroutine. Returns true when
// the loop should exit. dirty is set when the thermal setpoint changed and
// the cooler should be polled this iteration.
func (c *Controller) dispatch(ctx context.Context, req *request, dirty *bool) bool {
	switch req.kind {
	case cmdTemperature:
		*dirty = true
		req.respond(c.setTemperature(ctx, req.temperature, req.quiet))
	case cmdStream:
		req.respond(c.setStreaming(ctx, req.stream, req.quiet))
	case cmdGain:
		req.respond(c.setGain(ctx, req.gain, req.quiet))
	case cmdOffset:
		req.respond(c.setOffset(ctx, req.offset, req.quiet))
	case cmdExposure:
		req.respond(c.setExposure(ctx, req.exposure, req.quiet))
	case cmdStart:
		req.respond(c.startSequence(ctx, req.count, req.quiet))
	case cmdStop:
		req.respond(c.stopSequence(ctx, req.quiet))
	case cmdStatus:
		req.respond(c.statusSnapshot())
	case cmdShutdown:
		c.shutdown(ctx)
		req.respond(models.Succeeded)
		return true
	default:
		c.log.Errorw("unhandled command", "kind", req.kind)
		req.respond(models.Failed)
	}
	return false
}

// exec submits a request to the control loop and waits for its response.
func (c *Controller) exec(req *request) any {
	req.reply = make(chan any, 1)
	select {
	case c.requests <- req:
	case <-c.done:
		return models.Failed
	}
	select {
	case v := <-req.reply:
		return v
	case <-c.done:
		return models.Failed
	}
}

func (c *Controller) execStatus(req *request) models.CommandStatus {
	if status, ok := c.exec(req).(models.CommandStatus); ok {
		return status
	}
	return models.Failed
}

// SetTemperature sets the cooler target temperature; nil disables cooling.
func (c *Controller) SetTemperature(setpoint *float64, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdTemperature, temperature: setpoint, quiet: quiet})
}

// SetStreaming switches between streamed (live) and single-shot exposures.
func (c *Controller) SetStreaming(stream bool, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdStream, stream: stream, quiet: quiet})
}

// SetGain sets the camera gain.
func (c *Controller) SetGain(gain int, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdGain, gain: gain, quiet: quiet})
}

// SetOffset sets the camera bias level.
func (c *Controller) SetOffset(offset int, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdOffset, offset: offset, quiet: quiet})
}

// SetExposure sets the exposure time in seconds, effective from the next
// sequence.
func (c *Controller) SetExposure(seconds float64, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdExposure, exposure: seconds, quiet: quiet})
}

// StartSequence starts an exposure sequence of count frames; zero runs
// until stopped.
func (c *Controller) StartSequence(count int, quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdStart, count: count, quiet: quiet})
}

// StopSequence aborts the active exposure sequence at the next frame
// boundary.
func (c *Controller) StopSequence(quiet bool) models.CommandStatus {
	return c.execStatus(&request{kind: cmdStop, quiet: quiet})
}

// Status returns a snapshot of the camera state.
func (c *Controller) Status() (models.Status, error) {
	if status, ok := c.exec(&request{kind: cmdStatus}).(models.Status); ok {
		return status, nil
	}
	return models.Status{}, fmt.Errorf("camera is not running")
}

// Shutdown stops any active sequence, disconnects the camera and exits the
// control loop.
func (c *Controller) Shutdown() models.CommandStatus {
	return c.execStatus(&request{kind: cmdShutdown})
}

// --- command implementations, control goroutine only ---

func (c *Controller) setTemperature(ctx context.Context, setpoint *float64, quiet bool) models.CommandStatus {
	if setpoint != nil && (*setpoint < config.MinSetpointC || *setpoint > config.MaxSetpointC) {
		return models.TemperatureOutsideLimits
	}
	c.cooler.SetSetpoint(setpoint)
	if !quiet {
		if setpoint != nil {
			c.log.Infow("target temperature set", "temperature", *setpoint)
			c.events.Record(ctx, models.EventSetting, "Target temperature set",
				map[string]any{"temperature": *setpoint})
		} else {
			c.log.Infow("cooling disabled")
			c.events.Record(ctx, models.EventSetting, "Cooling disabled", nil)
		}
	}
	return models.Succeeded
}

func (c *Controller) setGain(ctx context.Context, gain int, quiet bool) models.CommandStatus {
	if c.acquiring.Load() {
		return models.CameraNotIdle
	}

	c.session.mu.Lock()
	var err error
	if c.session.device == nil {
		err = errCameraNotInitialized
	} else {
		err = c.session.device.SetParam(qhy.ControlGain, float64(gain))
	}
	c.session.mu.Unlock()
	if err != nil {
		c.log.Errorw("failed to set gain", "gain", gain, "err", err)
		return models.Failed
	}

	c.settings.mu.Lock()
	c.settings.gain = gain
	c.settings.mu.Unlock()

	if !quiet {
		c.log.Infow("gain set", "gain", gain)
		c.events.Record(ctx, models.EventSetting, "Gain set", map[string]any{"gain": gain})
	}
	return models.Succeeded
}

func (c *Controller) setOffset(ctx context.Context, offset int, quiet bool) models.CommandStatus {
	if c.acquiring.Load() {
		return models.CameraNotIdle
	}

	c.session.mu.Lock()
	var err error
	if c.session.device == nil {
		err = errCameraNotInitialized
	} else {
		err = c.session.device.SetParam(qhy.ControlOffset, float64(offset))
	}
	c.session.mu.Unlock()
	if err != nil {
		c.log.Errorw("failed to set offset", "offset", offset, "err", err)
		return models.Failed
	}

	c.settings.mu.Lock()
	c.settings.offset = offset
	c.settings.mu.Unlock()

	if !quiet {
		c.log.Infow("offset set", "offset", offset)
		c.events.Record(ctx, models.EventSetting, "Offset set", map[string]any{"offset": offset})
	}
	return models.Succeeded
}

func (c *Controller) setExposure(ctx context.Context, seconds float64, quiet bool) models.CommandStatus {
	c.settings.mu.Lock()
	c.settings.exposure = seconds
	c.settings.mu.Unlock()

	if !quiet {
		c.log.Infow("exposure time set", "seconds", seconds)
		c.events.Record(ctx, models.EventSetting, "Exposure time set", map[string]any{"seconds": seconds})
	}
	return models.Succeeded
}

// setStreaming reprograms the camera for streamed or single-shot capture.
// The hardware must be re-initialized after a stream mode change, which
// resets the readout region, bit depth and GPS parameter.
func (c *Controller) setStreaming(ctx context.Context, stream bool, quiet bool) models.CommandStatus {
	if c.acquiring.Load() {
		return models.CameraNotIdle
	}

	c.settings.mu.RLock()
	unchanged := c.settings.stream == stream
	c.settings.mu.RUnlock()
	if unchanged {
		return models.Succeeded
	}

	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	device := c.session.device
	if device == nil {
		return models.Failed
	}

	if err := device.SetStreamMode(stream); err != nil {
		c.log.Errorw("failed to set stream mode", "err", err)
		return models.Failed
	}

	c.settings.mu.Lock()
	c.settings.stream = stream
	c.settings.mu.Unlock()

	if err := device.Init(); err != nil {
		c.log.Errorw("failed to initialize camera hardware", "err", err)
		return models.Failed
	}
	if err := device.SetResolution(0, 0, c.session.readoutWidth, c.session.readoutHeight); err != nil {
		c.log.Errorw("failed to set readout region", "err", err)
		return models.Failed
	}
	if err := device.SetBitsMode(16); err != nil {
		c.log.Errorw("failed to set 16bit readout", "err", err)
		return models.Failed
	}
	if c.cfg.UseGPSBox {
		if err := device.SetParam(qhy.ControlGPS, 1); err != nil {
			c.log.Errorw("failed to enable GPS box", "err", err)
			return models.Failed
		}
	}

	if !quiet {
		c.log.Infow("streaming set", "stream", stream)
		c.events.Record(ctx, models.EventSetting, "Streaming changed", map[string]any{"stream": stream})
	}
	return models.Succeeded
}

func (c *Controller) startSequence(ctx context.Context, count int, quiet bool) models.CommandStatus {
	if c.acquiring.Load() {
		return models.CameraNotIdle
	}

	c.seq.frameLimit = count
	c.seq.frameCount.Store(0)
	c.seq.stop.Store(false)
	c.seq.exposureStart.Store(0)
	c.externalStop.Store(false)

	done := make(chan struct{})
	c.seqDone = done
	c.acquiring.Store(true)
	go func() {
		defer close(done)
		defer c.acquiring.Store(false)
		c.seq.run(quiet)
	}()

	if !quiet {
		countMsg := "until stopped"
		switch {
		case count == 1:
			countMsg = "1 frame"
		case count > 1:
			countMsg = fmt.Sprintf("%d frames", count)
		}
		c.log.Infow("starting exposure sequence", "frames", countMsg)
		c.events.Record(ctx, models.EventSequence, "Starting exposure sequence",
			map[string]any{"count": count})
	}
	return models.Succeeded
}

func (c *Controller) stopSequence(ctx context.Context, quiet bool) models.CommandStatus {
	if !c.acquiring.Load() || c.seq.stop.Load() {
		return models.CameraNotAcquiring
	}

	if !quiet {
		c.log.Infow("aborting exposure sequence")
		c.events.Record(ctx, models.EventSequence, "Aborting exposure sequence", nil)
	}

	c.seq.frameCount.Store(0)
	c.seq.stop.Store(true)
	return models.Succeeded
}

func (c *Controller) statusSnapshot() models.Status {
	cooler := c.cooler.Snapshot()

	status := models.Status{
		State:              models.StateIdle,
		CoolerMode:         cooler.Mode,
		CoolerTemperature:  cooler.Temperature,
		CoolerPWM:          int(math.Round(cooler.PWM / 2.55)), // byte to percentage
		CoolerSetpoint:     cooler.Setpoint,
		TemperatureLocked:  cooler.Mode == models.CoolerLocked,
		ExposureTime:       c.settings.Exposure(),
		SequenceFrameLimit: c.seq.frameLimit,
		SequenceFrameCount: int(c.seq.frameCount.Load()),
	}

	if c.acquiring.Load() {
		status.State = models.StateAcquiring
		if c.seq.stop.Load() {
			status.State = models.StateAborting
		} else if start := c.seq.exposureStart.Load(); start > 0 {
			progress := time.Since(time.Unix(0, start)).Seconds()
			status.ExposureProgress = progress
			if progress >= status.ExposureTime {
				status.State = models.StateReading
			}
		}
	}
	return status
}

// shutdown completes the current exposure, joins the sequencer goroutine
// and disconnects the camera.
func (c *Controller) shutdown(ctx context.Context) {
	if c.acquiring.Load() {
		c.session.mu.Lock()
		if c.session.device != nil {
			if err := c.session.device.CancelExposingAndReadout(); err != nil {
				c.log.Warnw("failed to cancel exposure", "err", err)
			}
		}
		c.session.mu.Unlock()

		c.log.Infow("shutdown: waiting for acquisition to complete")
		c.seq.stop.Store(true)
		if c.seqDone != nil {
			<-c.seqDone
		}
	}

	c.session.Close()
	c.log.Infow("shutdown camera")
	c.events.Record(ctx, models.EventShutdown, "Shutdown camera", nil)
}
