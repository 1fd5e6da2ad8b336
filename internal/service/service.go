package service

import (
	"context"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/repository"
)

// Camera exposes the camera control operations served over the command
// channel. Implemented by camera.Controller.
type Camera interface {
	SetTemperature(setpoint *float64, quiet bool) models.CommandStatus
	SetStreaming(stream bool, quiet bool) models.CommandStatus
	SetGain(gain int, quiet bool) models.CommandStatus
	SetOffset(offset int, quiet bool) models.CommandStatus
	SetExposure(seconds float64, quiet bool) models.CommandStatus
	StartSequence(count int, quiet bool) models.CommandStatus
	StopSequence(quiet bool) models.CommandStatus
	Status() (models.Status, error)
	Shutdown() models.CommandStatus
}

// EventLog exposes the append-only event history with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.CameraEvent, error)
}

// LogFilter selects events by inclusive time range and type.
type LogFilter struct {
	From time.Time // zero means no lower bound
	To   time.Time // zero means no upper bound
	Type string    // "", INIT, SHUTDOWN, SETTING, SEQUENCE, ERROR
}

// Service aggregates the sub-services consumed by the HTTP layer.
type Service struct {
	Camera
	EventLog
	Frames FrameSource
}

// NewService wires the camera controller, the repository layer and the frame
// notifier into the composed service.
func NewService(camera Camera, events repository.EventRepo, frames FrameSource) *Service {
	return &Service{
		Camera:   camera,
		EventLog: NewEventLogService(events),
		Frames:   frames,
	}
}
