package models

// Status is the snapshot returned by the status command.
type Status struct {
	State             CameraState `json:"state"`
	CoolerMode        CoolerMode  `json:"cooler_mode"`
	CoolerTemperature float64     `json:"cooler_temperature"`
	CoolerPWM         int         `json:"cooler_pwm"` // percentage 0-100
	CoolerSetpoint    *float64    `json:"cooler_setpoint"`
	TemperatureLocked bool        `json:"temperature_locked"`

	ExposureTime     float64 `json:"exposure_time"`     // seconds
	ExposureProgress float64 `json:"exposure_progress"` // seconds into current frame

	SequenceFrameLimit int `json:"sequence_frame_limit"`
	SequenceFrameCount int `json:"sequence_frame_count"`
}
