package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.CameraEvent, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	return s.eventRepo.List(ctx, from, to, normalizeEventType(f.Type))
}

// Recorder bridges the camera core to the event repository, swallowing
// append failures so a broken event database never aborts a camera
// operation.
type Recorder struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewRecorder(eventRepo repository.EventRepo, log *logger.Logger) *Recorder {
	return &Recorder{eventRepo: eventRepo, log: log}
}

// Record appends an event to the log, reporting failures only to the
// daemon logger.
func (r *Recorder) Record(ctx context.Context, eventType, description string, metadata any) {
	err := r.eventRepo.Append(ctx, models.CameraEvent{
		Type:        eventType,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil && r.log != nil {
		r.log.Errorw("failed to append camera event", "type", eventType, "err", err)
	}
}
