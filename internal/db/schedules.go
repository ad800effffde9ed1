package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

const (
	// LookupCodeLength is the fixed length of a schedule's public code.
	LookupCodeLength = 8
	// LookupAlphabet leaves out characters that are easy to confuse on a TV screen.
	LookupAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxLookupAttempts = 5
	uniqueViolation   = "23505"
)

const scheduleColumns = `id, company_id, name, description, lookup_code, is_active, timezone, settings, created_by, created_at, updated_at`

// GenerateLookupCode draws a random code from LookupAlphabet.
func GenerateLookupCode() (string, error) {
	size := big.NewInt(int64(len(LookupAlphabet)))
	code := make([]byte, LookupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate lookup code: %w", err)
		}
		code[i] = LookupAlphabet[n.Int64()]
	}
	return string(code), nil
}

func (s *pgStore) CreateSchedule(ctx context.Context, in model.NewSchedule) (model.Schedule, error) {
	settings := in.Settings
	if len(settings) == 0 {
		settings = types.JSONText("{}")
	}

	const q = `
	INSERT INTO schedules
	(company_id, name, description, lookup_code, is_active, timezone, settings, created_by, created_at, updated_at)
	VALUES
	($1,         $2,   $3,          $4,          true,      $5,       $6,       $7,         now(),      now())
	RETURNING ` + scheduleColumns + `;`

	for attempt := 1; attempt <= maxLookupAttempts; attempt++ {
		code, err := GenerateLookupCode()
		if err != nil {
			return model.Schedule{}, err
		}

		var sc model.Schedule
		err = s.db.GetContext(ctx, &sc, q,
			in.CompanyID, in.Name, in.Description, code, in.Timezone, settings, in.CreatedBy)
		if err == nil {
			return sc, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "schedules_lookup_code_key" {
			log.Warn().Str("lookup_code", code).Int("attempt", attempt).Msg("lookup code collision, retrying")
			continue
		}
		log.Error().Err(err).Int("company_id", in.CompanyID).Msg("CreateSchedule failed")
		return model.Schedule{}, storageError("create schedule", err)
	}
	return model.Schedule{}, fmt.Errorf("no unique lookup code after %d attempts", maxLookupAttempts)
}

func (s *pgStore) GetSchedule(ctx context.Context, id int) (model.Schedule, error) {
	var sc model.Schedule
	err := s.db.GetContext(ctx, &sc, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, timeline.NotFoundf("schedule %d", id)
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("GetSchedule failed")
		return model.Schedule{}, storageError("get schedule", err)
	}
	return sc, nil
}

// GetScheduleByCode only finds active schedules; devices never see deactivated ones.
func (s *pgStore) GetScheduleByCode(ctx context.Context, code string) (model.Schedule, error) {
	var sc model.Schedule
	err := s.db.GetContext(ctx, &sc,
		`SELECT `+scheduleColumns+` FROM schedules WHERE lookup_code = $1 AND is_active;`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, timeline.NotFoundf("schedule %q", code)
	}
	if err != nil {
		log.Error().Err(err).Str("lookup_code", code).Msg("GetScheduleByCode failed")
		return model.Schedule{}, storageError("get schedule by code", err)
	}
	return sc, nil
}

func (s *pgStore) ListSchedules(ctx context.Context, companyID int) ([]model.Schedule, error) {
	out := []model.Schedule{}
	const q = `
	SELECT ` + scheduleColumns + `
	  FROM schedules
	 WHERE company_id = $1
	 ORDER BY id;`
	if err := s.db.SelectContext(ctx, &out, q, companyID); err != nil {
		log.Error().Err(err).Int("company_id", companyID).Msg("ListSchedules failed")
		return nil, storageError("list schedules", err)
	}
	return out, nil
}

// UpdateSchedule changes the given fields of an active schedule.
func (s *pgStore) UpdateSchedule(ctx context.Context, id int, in model.ScheduleUpdate) (model.Schedule, error) {
	var settings types.NullJSONText
	if in.Settings != nil {
		settings = types.NullJSONText{JSONText: in.Settings, Valid: true}
	}

	var sc model.Schedule
	err := s.db.GetContext(ctx, &sc, `
		UPDATE schedules
		SET
		name        = COALESCE($2, name),
		description = COALESCE($3, description),
		timezone    = COALESCE($4, timezone),
		settings    = COALESCE($5, settings),
		updated_at  = now()
		WHERE id = $1 AND is_active
		RETURNING `+scheduleColumns+`;`,
		id, in.Name, in.Description, in.Timezone, settings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, timeline.NotFoundf("schedule %d", id)
	}
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("UpdateSchedule failed")
		return model.Schedule{}, storageError("update schedule", err)
	}
	return sc, nil
}

// DeactivateSchedule soft-deletes the schedule and every item on it in one transaction.
func (s *pgStore) DeactivateSchedule(ctx context.Context, id int) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageError("deactivate schedule", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Debug().Err(rbErr).Int("schedule_id", id).Msg("DeactivateSchedule rollback")
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = storageError("deactivate schedule", err)
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE schedules
		   SET is_active = false, updated_at = now()
		 WHERE id = $1 AND is_active;`, id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("DeactivateSchedule failed")
		return storageError("deactivate schedule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeline.NotFoundf("schedule %d", id)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE schedule_items
		   SET is_active = false, updated_at = now()
		 WHERE schedule_id = $1 AND is_active;`, id); err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("DeactivateSchedule items failed")
		return storageError("deactivate schedule items", err)
	}
	return nil
}
