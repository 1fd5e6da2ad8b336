package models

import "time"

// FrameRecord is one completed exposure together with the provenance needed
// to build its header downstream. Ownership transfers to the frame queue
// consumer once pushed; the camera keeps no reference to Data.
type FrameRecord struct {
	FrameID string `json:"frame_id"`

	// Raw 16-bit samples, row-major, ReadoutWidth*ReadoutHeight long.
	Data []uint16 `json:"-"`

	RequestedExposure float64 `json:"requested_exposure"` // seconds
	Exposure          float64 `json:"exposure"`           // actual, seconds
	LinePeriod        float64 `json:"lineperiod"`         // seconds
	FramePeriod       float64 `json:"frameperiod"`        // seconds
	ReadoutOffset     float64 `json:"readout_offset"`     // rolling shutter end offset, microseconds

	Mode     int    `json:"mode"`
	ModeName string `json:"mode_name"`
	Gain     int    `json:"gain"`
	Offset   int    `json:"offset"`
	Stream   bool   `json:"stream"`

	ReadEndTime time.Time `json:"read_end_time"`

	SDKVersion      string `json:"sdk_version"`
	FirmwareVersion string `json:"firmware_version"`

	CoolerMode        CoolerMode `json:"cooler_mode"`
	CoolerTemperature float64    `json:"cooler_temperature"`
	CoolerPWM         float64    `json:"cooler_pwm"`
	CoolerSetpoint    *float64   `json:"cooler_setpoint"`

	// Window and effective (non-overscan) geometry, 1-indexed inclusive.
	WinX      int `json:"win_x"`
	WinY      int `json:"win_y"`
	WinWidth  int `json:"win_width"`
	WinHeight int `json:"win_height"`
	ImageX1   int `json:"image_x1"`
	ImageX2   int `json:"image_x2"`
	ImageY1   int `json:"image_y1"`
	ImageY2   int `json:"image_y2"`

	ExposureCount          int    `json:"exposure_count"`
	ExposureCountReference string `json:"exposure_count_reference"`
}
