// exposes a Store interface that is passed to API calls w/ param requirements
package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type Store interface {
	// schedule functions
	CreateSchedule(ctx context.Context, in model.NewSchedule) (model.Schedule, error)
	GetSchedule(ctx context.Context, id int) (model.Schedule, error)
	GetScheduleByCode(ctx context.Context, code string) (model.Schedule, error)
	ListSchedules(ctx context.Context, companyID int) ([]model.Schedule, error)
	UpdateSchedule(ctx context.Context, id int, in model.ScheduleUpdate) (model.Schedule, error)
	DeactivateSchedule(ctx context.Context, id int) error

	// timeline functions
	ListItems(ctx context.Context, scheduleID int) ([]timeline.Item, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

// storageError marks a driver failure of a Store call so callers can tell
// outages from missing rows.
func storageError(op string, err error) error {
	return &timeline.StorageError{Op: op, Err: describe(err)}
}
