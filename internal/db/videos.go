package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

// VideoChecker confirms a video belongs to the schedule's company and is active.
type VideoChecker struct {
	db *sqlx.DB
}

var _ timeline.VideoChecker = (*VideoChecker)(nil)

func NewVideoChecker(db *sqlx.DB) *VideoChecker {
	return &VideoChecker{db: db}
}

func (v *VideoChecker) VideoUsable(ctx context.Context, scheduleID, videoID int) (bool, error) {
	var ok bool
	const q = `
	SELECT EXISTS (
	  SELECT 1
	    FROM videos vi
	    JOIN schedules sc ON sc.company_id = vi.company_id
	   WHERE sc.id = $1 AND vi.id = $2 AND vi.is_active
	);`
	if err := v.db.GetContext(ctx, &ok, q, scheduleID, videoID); err != nil {
		log.Error().Err(err).Int("schedule_id", scheduleID).Int("video_id", videoID).Msg("VideoUsable failed")
		return false, err
	}
	return ok, nil
}
