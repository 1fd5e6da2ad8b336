package models

// CommandStatus is the result code returned for every camera command.
type CommandStatus int

const (
	Succeeded CommandStatus = iota
	Failed
	CameraNotFound
	CameraNotIdle
	CameraNotAcquiring
	TemperatureOutsideLimits
)

func (s CommandStatus) String() string {
	switch s {
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case CameraNotFound:
		return "CAMERA_NOT_FOUND"
	case CameraNotIdle:
		return "CAMERA_NOT_IDLE"
	case CameraNotAcquiring:
		return "CAMERA_NOT_ACQUIRING"
	case TemperatureOutsideLimits:
		return "TEMPERATURE_OUTSIDE_LIMITS"
	default:
		return "UNKNOWN"
	}
}

// MarshalText makes the status render as its name in JSON responses.
func (s CommandStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CameraState is the acquisition state reported in status snapshots.
type CameraState string

const (
	StateIdle      CameraState = "IDLE"
	StateAcquiring CameraState = "ACQUIRING"
	StateReading   CameraState = "READING"
	StateAborting  CameraState = "ABORTING"
)

// CoolerMode is recomputed from the sensor readings on every cooler poll;
// it is never persisted.
type CoolerMode string

const (
	CoolerUnknown   CoolerMode = "UNKNOWN"
	CoolerWarm      CoolerMode = "WARM"
	CoolerWarming   CoolerMode = "WARMING"
	CoolerCooling   CoolerMode = "COOLING"
	CoolerLocking   CoolerMode = "LOCKING"
	CoolerLocked    CoolerMode = "LOCKED"
	CoolerUVLOError CoolerMode = "UVLO_ERROR"
)
