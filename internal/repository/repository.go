package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/models"
)

// EventRepo is the append-only camera event log.
type EventRepo interface {
	Append(ctx context.Context, e models.CameraEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.CameraEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
