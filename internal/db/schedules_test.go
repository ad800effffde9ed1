package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

var scheduleCols = []string{
	"id", "company_id", "name", "description", "lookup_code", "is_active",
	"timezone", "settings", "created_by", "created_at", "updated_at",
}

func TestGenerateLookupCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateLookupCode()
		require.NoError(t, err)
		require.Len(t, code, LookupCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(LookupAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestCreateScheduleRetriesLookupCollisions(t *testing.T) {
	conn, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO schedules").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "schedules_lookup_code_key"})
	mock.ExpectQuery("INSERT INTO schedules").
		WillReturnRows(sqlmock.NewRows(scheduleCols).
			AddRow(1, 9, "Lobby", nil, "ABCDEFGH", true, "Europe/Paris", []byte(`{}`), 2, now, now))

	sc, err := NewStore(conn).CreateSchedule(context.Background(), model.NewSchedule{
		CompanyID: 9, CreatedBy: 2, Name: "Lobby", Timezone: "Europe/Paris",
	})
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", sc.LookupCode)
	assert.Equal(t, "{}", string(sc.Settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateScheduleSurfacesOtherErrors(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO schedules").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "some_other_key"})

	_, err := NewStore(conn).CreateSchedule(context.Background(), model.NewSchedule{CompanyID: 9, Name: "x"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScheduleNotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("FROM schedules WHERE id").
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows(scheduleCols))

	_, err := NewStore(conn).GetSchedule(context.Background(), 77)
	assert.ErrorIs(t, err, timeline.ErrNotFound)
}

func TestDeactivateScheduleCascades(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedules\s+SET is_active = false`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE schedule_items\s+SET is_active = false`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	require.NoError(t, NewStore(conn).DeactivateSchedule(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateScheduleNotFound(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedules`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewStore(conn).DeactivateSchedule(context.Background(), 3)
	assert.ErrorIs(t, err, timeline.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoUsable(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(3, 8).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewVideoChecker(conn).VideoUsable(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateScheduleIgnoresInactiveSchedules(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`UPDATE schedules[\s\S]+WHERE id = \$1 AND is_active`).
		WillReturnRows(sqlmock.NewRows(scheduleCols))

	name := "Revived"
	_, err := NewStore(conn).UpdateSchedule(context.Background(), 3, model.ScheduleUpdate{Name: &name})
	assert.ErrorIs(t, err, timeline.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWrapsDriverFailures(t *testing.T) {
	down := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

	tests := []struct {
		name string
		run  func(Store) error
	}{
		{"list items", func(s Store) error { _, err := s.ListItems(context.Background(), 3); return err }},
		{"get schedule", func(s Store) error { _, err := s.GetSchedule(context.Background(), 3); return err }},
		{"get schedule by code", func(s Store) error { _, err := s.GetScheduleByCode(context.Background(), "ABCDEFGH"); return err }},
		{"list schedules", func(s Store) error { _, err := s.ListSchedules(context.Background(), 9); return err }},
		{"update schedule", func(s Store) error {
			_, err := s.UpdateSchedule(context.Background(), 3, model.ScheduleUpdate{})
			return err
		}},
		{"create schedule", func(s Store) error {
			_, err := s.CreateSchedule(context.Background(), model.NewSchedule{CompanyID: 9, Name: "x"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMock(t)
			mock.ExpectQuery(".").WillReturnError(down)

			err := tt.run(NewStore(conn))
			assert.ErrorIs(t, err, timeline.ErrStorage)
			assert.ErrorIs(t, err, down)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("deactivate schedule", func(t *testing.T) {
		conn, mock := newMock(t)
		mock.ExpectBegin().WillReturnError(down)

		err := NewStore(conn).DeactivateSchedule(context.Background(), 3)
		assert.ErrorIs(t, err, timeline.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
