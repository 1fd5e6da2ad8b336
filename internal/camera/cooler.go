package camera

import (
	"math"
	"sync"

	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
)

// Thermal state machine thresholds, degrees Celsius.
const (
	// rampDeltaC: above this distance from the setpoint the cooler power
	// is ramped manually instead of handed to the closed loop.
	rampDeltaC = 5.0
	// lockedDeltaC: within this distance the temperature counts as locked.
	lockedDeltaC = 0.5
	// retargetDeltaC: the closed-loop target is rewritten when it drifts
	// from the setpoint by more than this.
	retargetDeltaC = 0.1
)

// Cooler polls the sensor temperature and drives the thermal state machine.
// The reported mode is recomputed from scratch on every Update; failed
// driver writes are logged and retried naturally on the next poll.
type Cooler struct {
	session *Session
	log     *logger.Logger
	pwmStep float64

	// snapMu guards the snapshot fields below, which are written by
	// Update on the control goroutine and read by status reporting and
	// the sequencer.
	snapMu      sync.Mutex
	mode        models.CoolerMode
	setpoint    *float64
	temperature float64
	pwm         float64
}

// CoolerSnapshot is a point-in-time copy of the cooler state.
type CoolerSnapshot struct {
	Mode        models.CoolerMode
	Setpoint    *float64
	Temperature float64
	PWM         float64
}

// NewCooler creates a cooler controller for the session. The initial
// setpoint comes from configuration; nil leaves the cooler off.
func NewCooler(session *Session, log *logger.Logger, setpoint *float64, pwmStep int) *Cooler {
	return &Cooler{
		session:  session,
		log:      log,
		pwmStep:  float64(pwmStep),
		mode:     models.CoolerUnknown,
		setpoint: setpoint,
	}
}

// SetSetpoint changes the target temperature. Nil disables cooling and
// ramps the power down over the following polls.
func (c *Cooler) SetSetpoint(setpoint *float64) {
	c.snapMu.Lock()
	c.setpoint = setpoint
	c.snapMu.Unlock()
}

// Snapshot returns the state observed by the most recent Update.
func (c *Cooler) Snapshot() CoolerSnapshot {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	return CoolerSnapshot{
		Mode:        c.mode,
		Setpoint:    c.setpoint,
		Temperature: c.temperature,
		PWM:         c.pwm,
	}
}

// uvloTripped reports whether the UVLO status register reads as a tripped
// under-voltage lockout.
func uvloTripped(status int) bool {
	for _, v := range qhy.UVLOErrorValues {
		if status == v {
			return true
		}
	}
	return false
}

// ResetUVLO clears a tripped under-voltage lockout flag. Called once after
// initialization, independent of the poll cadence.
func (c *Cooler) ResetUVLO() {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	if c.session.device == nil {
		return
	}
	if uvloTripped(int(c.session.device.GetParam(qhy.ControlUVLO))) {
		c.log.Infow("resetting UVLO flag")
		if err := c.session.device.ResetUVLOError(); err != nil {
			c.log.Errorw("failed to reset UVLO flag", "err", err)
		}
	}
}

// Update performs one poll tick: read temperature and power, recompute the
// mode, and nudge the cooler toward the setpoint.
func (c *Cooler) Update() {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	device := c.session.device
	if device == nil {
		return
	}

	temperature := device.GetParam(qhy.ControlCurTemp)
	pwm := device.GetParam(qhy.ControlCurPWM)

	c.snapMu.Lock()
	setpoint := c.setpoint
	c.snapMu.Unlock()

	mode := models.CoolerUnknown
	switch {
	case uvloTripped(int(device.GetParam(qhy.ControlUVLO))):
		mode = models.CoolerUVLOError

	case setpoint == nil:
		// Ramp the cooler power down over a few update cycles.
		if pwm > 0 {
			mode = models.CoolerWarming
			p := math.Max(0, pwm-c.pwmStep)
			if err := device.SetParam(qhy.ControlManualPWM, p); err != nil {
				c.log.Errorw("failed to update cooler PWM control", "err", err)
			}
		} else {
			mode = models.CoolerWarm
		}

	default:
		delta := math.Abs(temperature - *setpoint)
		if delta > rampDeltaC {
			// Ramp the power toward the requested temperature over a
			// few update cycles.
			var p float64
			if temperature > *setpoint {
				mode = models.CoolerCooling
				p = math.Min(255, pwm+c.pwmStep)
			} else {
				mode = models.CoolerWarming
				p = math.Max(0, pwm-c.pwmStep)
			}
			if err := device.SetParam(qhy.ControlManualPWM, p); err != nil {
				c.log.Errorw("failed to update cooler PWM control", "err", err)
			}
		} else {
			if delta < lockedDeltaC {
				mode = models.CoolerLocked
			} else {
				mode = models.CoolerLocking
			}

			target := device.GetParam(qhy.ControlCooler)
			if math.Abs(target-*setpoint) > retargetDeltaC {
				// Switch to closed-loop control and/or update the target.
				if err := device.SetParam(qhy.ControlCooler, *setpoint); err != nil {
					c.log.Errorw("failed to set cooler target", "target", *setpoint, "err", err)
				}
			}
		}
	}

	c.snapMu.Lock()
	c.mode = mode
	c.temperature = temperature
	c.pwm = pwm
	c.snapMu.Unlock()
}
