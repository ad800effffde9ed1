package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

var itemCols = []string{
	"id", "schedule_id", "video_id", "start_time", "duration", "day_of_week",
	"start_date", "end_date", "sort_order", "is_active", "created_at", "updated_at",
}

func expectLock(mock sqlmock.Sqlmock, scheduleID int, active bool) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = 5000;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT is_active FROM schedules WHERE id = $1 FOR UPDATE;")).
		WithArgs(scheduleID).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(active))
}

func TestPlaceItemThroughPostgres(t *testing.T) {
	conn, mock := newMock(t)
	now := time.Now()

	expectLock(mock, 3, true)
	mock.ExpectQuery(`FROM schedule_items\s+WHERE schedule_id = \$1 AND is_active AND id <> \$2`).
		WithArgs(3, 0).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(11, 3, 5, "09:00:00", 1800, nil, nil, nil, 0, true, now, now))
	mock.ExpectExec(`UPDATE schedule_items\s+SET start_time = \$1, duration = \$2`).
		WithArgs("09:00:00", 900, 11, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO schedule_items`).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(12, 3, 6, "09:15:00", 1800, "{1,2}", nil, now, 0, true, now, now))
	mock.ExpectCommit()

	c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
	p, err := c.PlaceItem(context.Background(), 3, timeline.Candidate{
		VideoID: 6,
		Slot: timeline.Slot{
			Start:    timeline.Clock(9, 15, 0),
			Duration: 1800,
			Days:     timeline.Weekdays(time.Monday, time.Tuesday),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 12, p.Item.ID)
	assert.Equal(t, []int{1, 2}, p.Item.Days.Days())
	assert.Nil(t, p.Item.Dates.Start())
	require.NotNil(t, p.Item.Dates.End())
	assert.Equal(t, timeline.DateOf(now), *p.Item.Dates.End())
	require.Len(t, p.Adjusted, 1)
	assert.Equal(t, 11, p.Adjusted[0].ItemID)
	assert.Equal(t, 900, p.Adjusted[0].NewDuration)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceItemRollsBackOnCommitFailure(t *testing.T) {
	conn, mock := newMock(t)
	now := time.Now()

	expectLock(mock, 3, true)
	mock.ExpectQuery(`FROM schedule_items`).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(11, 3, 5, "09:00:00", 1800, nil, nil, nil, 0, true, now, now))
	mock.ExpectExec(`UPDATE schedule_items\s+SET is_active = false`).
		WithArgs(11, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO schedule_items`).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(12, 3, 6, "08:00:00", 7200, nil, nil, nil, 0, true, now, now))
	mock.ExpectCommit().WillReturnError(errors.New("server closed the connection"))

	c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
	_, err := c.PlaceItem(context.Background(), 3, timeline.Candidate{
		VideoID: 6,
		Slot:    timeline.Slot{Start: timeline.Clock(8, 0, 0), Duration: 7200},
	})

	assert.ErrorIs(t, err, timeline.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginReportsMissingAndInactiveSchedules(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTimelineRepository(conn, 5*time.Second)

	expectLock(mock, 4, false)
	mock.ExpectRollback()
	_, err := repo.Begin(context.Background(), 4)
	assert.ErrorIs(t, err, timeline.ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))
	mock.ExpectRollback()
	_, err = repo.Begin(context.Background(), 5)
	assert.ErrorIs(t, err, timeline.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginReportsLockContention(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
	err := c.RemoveItem(context.Background(), 3, 11)

	require.ErrorIs(t, err, timeline.ErrStorage)
	assert.Contains(t, err.Error(), "busy")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveItemThroughPostgres(t *testing.T) {
	conn, mock := newMock(t)
	now := time.Now()

	expectLock(mock, 3, true)
	mock.ExpectQuery(`FROM schedule_items WHERE id = \$1 AND schedule_id = \$2`).
		WithArgs(11, 3).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(11, 3, 5, "09:00:00", 1800, nil, nil, nil, 0, true, now, now))
	mock.ExpectExec(`SET is_active = false`).
		WithArgs(11, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
	require.NoError(t, c.RemoveItem(context.Background(), 3, 11))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListItemsDecodesRows(t *testing.T) {
	conn, mock := newMock(t)
	now := time.Now()
	june1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	june30 := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM schedule_items\s+WHERE schedule_id = \$1 AND is_active\s+ORDER BY`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(1, 3, 5, "07:30:00", 600, "{0,6}", june1, june30, 2, true, now, now).
			AddRow(2, 3, 5, "08:00:00", 60, nil, nil, nil, 0, true, now, now))

	items, err := NewStore(conn).ListItems(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, timeline.Clock(7, 30, 0), items[0].Start)
	assert.Equal(t, []int{0, 6}, items[0].Days.Days())
	assert.Equal(t, "[2025-06-01, 2025-06-30]", items[0].Dates.String())
	assert.Equal(t, 2, items[0].Order)
	assert.True(t, items[1].Days.Unrestricted())
	assert.True(t, items[1].Dates.Unbounded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeItem(t *testing.T) {
	start := timeline.NewDate(2025, 1, 2)
	dates, err := timeline.Between(&start, nil)
	require.NoError(t, err)

	p := encodeItem(timeline.Item{Slot: timeline.Slot{
		Start: timeline.Clock(6, 5, 0),
		Days:  timeline.Weekdays(time.Saturday, time.Sunday),
		Dates: dates,
	}})
	assert.Equal(t, "06:05:00", p.startTime)
	assert.Equal(t, pq.Int64Array{0, 6}, p.days)
	require.NotNil(t, p.startDate)
	assert.Equal(t, "2025-01-02", *p.startDate)
	assert.Nil(t, p.endDate)

	p = encodeItem(timeline.Item{})
	assert.Nil(t, p.days)
}

func TestPlaceItemAcrossMidnightThroughPostgres(t *testing.T) {
	now := time.Now()

	t.Run("remainder past midnight is deactivated", func(t *testing.T) {
		conn, mock := newMock(t)

		expectLock(mock, 3, true)
		mock.ExpectQuery(`FROM schedule_items`).
			WithArgs(3, 0).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(11, 3, 5, "23:30:00", 5400, nil, nil, nil, 0, true, now, now))
		mock.ExpectExec(`UPDATE schedule_items\s+SET is_active = false`).
			WithArgs(11, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO schedule_items`).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(12, 3, 6, "23:00:00", 3600, nil, nil, nil, 0, true, now, now))
		mock.ExpectCommit()

		c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
		p, err := c.PlaceItem(context.Background(), 3, timeline.Candidate{
			VideoID: 6,
			Slot:    timeline.Slot{Start: timeline.Clock(23, 0, 0), Duration: 3600},
		})
		require.NoError(t, err)
		assert.Empty(t, p.Adjusted)
		assert.Equal(t, []int{11}, p.Removed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("candidate ending at midnight trims an earlier item", func(t *testing.T) {
		conn, mock := newMock(t)

		expectLock(mock, 3, true)
		mock.ExpectQuery(`FROM schedule_items`).
			WithArgs(3, 0).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(11, 3, 5, "21:30:00", 3600, nil, nil, nil, 0, true, now, now))
		mock.ExpectExec(`UPDATE schedule_items\s+SET start_time = \$1, duration = \$2`).
			WithArgs("21:30:00", 1800, 11, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO schedule_items`).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow(12, 3, 6, "22:00:00", 7200, nil, nil, nil, 0, true, now, now))
		mock.ExpectCommit()

		c := timeline.NewCoordinator(NewTimelineRepository(conn, 5*time.Second))
		p, err := c.PlaceItem(context.Background(), 3, timeline.Candidate{
			VideoID: 6,
			Slot:    timeline.Slot{Start: timeline.Clock(22, 0, 0), Duration: 7200},
		})
		require.NoError(t, err)
		require.Len(t, p.Adjusted, 1)
		assert.Equal(t, timeline.ActionTrimEnd, p.Adjusted[0].Action)
		assert.Equal(t, "24:00:00", p.Item.End().String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
