package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

const itemColumns = `id, schedule_id, video_id, start_time, duration, day_of_week, start_date, end_date, sort_order, is_active, created_at, updated_at`

// contention codes: lock_not_available, serialization_failure, deadlock_detected
var contentionCodes = map[pq.ErrorCode]bool{"55P03": true, "40001": true, "40P01": true}

// describe adds a readable cause to lock contention errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && contentionCodes[pqErr.Code] {
		return fmt.Errorf("timeline is busy, another writer holds the schedule: %w", err)
	}
	return err
}

func toItem(row model.ScheduleItem) (timeline.Item, error) {
	start, err := timeline.ParseTimeOfDay(row.StartTime)
	if err != nil {
		return timeline.Item{}, fmt.Errorf("stored item %d: %v", row.ID, err)
	}

	var days []int
	if row.DayOfWeek != nil {
		days = make([]int, len(row.DayOfWeek))
		for i, d := range row.DayOfWeek {
			days[i] = int(d)
		}
	}
	daySet, err := timeline.NewDaySet(days)
	if err != nil {
		return timeline.Item{}, fmt.Errorf("stored item %d: %v", row.ID, err)
	}

	var lo, hi *timeline.Date
	if row.StartDate.Valid {
		d := timeline.DateOf(row.StartDate.Time)
		lo = &d
	}
	if row.EndDate.Valid {
		d := timeline.DateOf(row.EndDate.Time)
		hi = &d
	}
	dates, err := timeline.Between(lo, hi)
	if err != nil {
		return timeline.Item{}, fmt.Errorf("stored item %d: %v", row.ID, err)
	}

	return timeline.Item{
		ID:         row.ID,
		ScheduleID: row.ScheduleID,
		VideoID:    row.VideoID,
		Order:      row.Order,
		Active:     row.IsActive,
		Slot: timeline.Slot{
			Start:    start,
			Duration: row.Duration,
			Days:     daySet,
			Dates:    dates,
		},
	}, nil
}

func toItems(rows []model.ScheduleItem) ([]timeline.Item, error) {
	out := make([]timeline.Item, 0, len(rows))
	for _, row := range rows {
		it, err := toItem(row)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// itemParams is the column encoding of a timeline item.
type itemParams struct {
	startTime string
	days      pq.Int64Array
	startDate *string
	endDate   *string
}

func encodeItem(it timeline.Item) itemParams {
	p := itemParams{startTime: it.Start.String()}
	if !it.Days.Unrestricted() {
		for _, d := range it.Days.Days() {
			p.days = append(p.days, int64(d))
		}
	}
	if d := it.Dates.Start(); d != nil {
		s := d.String()
		p.startDate = &s
	}
	if d := it.Dates.End(); d != nil {
		s := d.String()
		p.endDate = &s
	}
	return p
}

// ListItems returns the active items of a schedule in playback order.
func (s *pgStore) ListItems(ctx context.Context, scheduleID int) ([]timeline.Item, error) {
	var rows []model.ScheduleItem
	const q = `
	SELECT ` + itemColumns + `
	  FROM schedule_items
	 WHERE schedule_id = $1 AND is_active
	 ORDER BY start_time, sort_order, id;`
	if err := s.db.SelectContext(ctx, &rows, q, scheduleID); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("ListItems failed")
		return nil, storageError("list items", err)
	}
	return toItems(rows)
}

// TimelineRepository implements timeline.Repository on PostgreSQL. Begin
// takes a row lock on the schedule, so writers of one schedule queue behind
// each other while other schedules proceed.
type TimelineRepository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

var _ timeline.Repository = (*TimelineRepository)(nil)

// NewTimelineRepository builds the repository. A zero lockTimeout waits forever.
func NewTimelineRepository(db *sqlx.DB, lockTimeout time.Duration) *TimelineRepository {
	return &TimelineRepository{db: db, lockTimeout: lockTimeout}
}

func (r *TimelineRepository) Begin(ctx context.Context, scheduleID int) (timeline.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}

	fail := func(err error) (timeline.Tx, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Debug().Err(rbErr).Int("schedule_id", scheduleID).Msg("rollback after failed begin")
		}
		return nil, err
	}

	if r.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d;", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fail(err)
		}
	}

	var active bool
	err = tx.GetContext(ctx, &active, `SELECT is_active FROM schedules WHERE id = $1 FOR UPDATE;`, scheduleID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fail(timeline.NotFoundf("schedule %d", scheduleID))
	case err != nil:
		log.Error().Err(err).Int("schedule_id", scheduleID).Msg("lock schedule failed")
		return fail(describe(err))
	case !active:
		return fail(timeline.NotFoundf("schedule %d is inactive", scheduleID))
	}

	return &pgTimelineTx{tx: tx, scheduleID: scheduleID}, nil
}

type pgTimelineTx struct {
	tx         *sqlx.Tx
	scheduleID int
}

func (t *pgTimelineTx) ActiveItems(ctx context.Context, excludeID int) ([]timeline.Item, error) {
	var rows []model.ScheduleItem
	const q = `
	SELECT ` + itemColumns + `
	  FROM schedule_items
	 WHERE schedule_id = $1 AND is_active AND id <> $2
	 ORDER BY start_time, sort_order, id;`
	if err := t.tx.SelectContext(ctx, &rows, q, t.scheduleID, excludeID); err != nil {
		log.Error().Err(err).Int("schedule_id", t.scheduleID).Msg("load active items failed")
		return nil, describe(err)
	}
	return toItems(rows)
}

func (t *pgTimelineTx) Item(ctx context.Context, itemID int) (timeline.Item, error) {
	var row model.ScheduleItem
	err := t.tx.GetContext(ctx, &row,
		`SELECT `+itemColumns+` FROM schedule_items WHERE id = $1 AND schedule_id = $2;`,
		itemID, t.scheduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Item{}, timeline.NotFoundf("item %d in schedule %d", itemID, t.scheduleID)
	}
	if err != nil {
		return timeline.Item{}, describe(err)
	}
	return toItem(row)
}

func (t *pgTimelineTx) Adjust(ctx context.Context, adj timeline.Adjustment) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE schedule_items
		   SET start_time = $1, duration = $2, updated_at = now()
		 WHERE id = $3 AND schedule_id = $4;`,
		adj.NewStart.String(), adj.NewDuration, adj.ItemID, t.scheduleID)
	return t.expectOne(res, err, adj.ItemID)
}

func (t *pgTimelineTx) Deactivate(ctx context.Context, itemID int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE schedule_items
		   SET is_active = false, updated_at = now()
		 WHERE id = $1 AND schedule_id = $2;`,
		itemID, t.scheduleID)
	return t.expectOne(res, err, itemID)
}

func (t *pgTimelineTx) Insert(ctx context.Context, it timeline.Item) (timeline.Item, error) {
	p := encodeItem(it)
	var row model.ScheduleItem
	err := t.tx.GetContext(ctx, &row, `
	INSERT INTO schedule_items
	(schedule_id, video_id, start_time, duration, day_of_week, start_date, end_date, sort_order, is_active, created_at, updated_at)
	VALUES
	($1,          $2,       $3,         $4,       $5,          $6,         $7,       $8,         true,      now(),      now())
	RETURNING `+itemColumns+`;`,
		t.scheduleID, it.VideoID, p.startTime, it.Duration, p.days, p.startDate, p.endDate, it.Order)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", t.scheduleID).Msg("insert item failed")
		return timeline.Item{}, describe(err)
	}
	return toItem(row)
}

func (t *pgTimelineTx) Update(ctx context.Context, it timeline.Item) (timeline.Item, error) {
	p := encodeItem(it)
	var row model.ScheduleItem
	err := t.tx.GetContext(ctx, &row, `
		UPDATE schedule_items
		SET
		video_id    = $3,
		start_time  = $4,
		duration    = $5,
		day_of_week = $6,
		start_date  = $7,
		end_date    = $8,
		sort_order  = $9,
		is_active   = true,
		updated_at  = now()
		WHERE id = $1 AND schedule_id = $2
		RETURNING `+itemColumns+`;`,
		it.ID, t.scheduleID, it.VideoID, p.startTime, it.Duration, p.days, p.startDate, p.endDate, it.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return timeline.Item{}, timeline.NotFoundf("item %d in schedule %d", it.ID, t.scheduleID)
	}
	if err != nil {
		log.Error().Err(err).Int("item_id", it.ID).Msg("update item failed")
		return timeline.Item{}, describe(err)
	}
	return toItem(row)
}

func (t *pgTimelineTx) Commit() error   { return describe(t.tx.Commit()) }
func (t *pgTimelineTx) Rollback() error { return t.tx.Rollback() }

func (t *pgTimelineTx) expectOne(res sql.Result, err error, itemID int) error {
	if err != nil {
		log.Error().Err(err).Int("item_id", itemID).Msg("item write failed")
		return describe(err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return timeline.NotFoundf("item %d in schedule %d", itemID, t.scheduleID)
	}
	return nil
}
