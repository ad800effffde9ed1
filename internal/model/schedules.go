package model

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Schedule is a named timeline container owned by a company.
type Schedule struct {
	ID          int            `db:"id"           json:"id"`
	CompanyID   int            `db:"company_id"   json:"company_id"`
	Name        string         `db:"name"         json:"name"`
	Description *string        `db:"description"  json:"description,omitempty"`
	LookupCode  string         `db:"lookup_code"  json:"lookup_code"`
	IsActive    bool           `db:"is_active"    json:"is_active"`
	Timezone    string         `db:"timezone"     json:"timezone"`
	Settings    types.JSONText `db:"settings"     json:"settings"`
	CreatedBy   int            `db:"created_by"   json:"created_by"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"   json:"updated_at"`
}

// NewSchedule carries the caller supplied fields of a schedule insert.
type NewSchedule struct {
	CompanyID   int
	CreatedBy   int
	Name        string
	Description *string
	Timezone    string
	Settings    types.JSONText
}

// ScheduleUpdate holds optional changes; nil fields are left as they are.
// The lookup code is immutable and deliberately absent.
type ScheduleUpdate struct {
	Name        *string
	Description *string
	Timezone    *string
	Settings    types.JSONText
}

// ScheduleItem is the stored row of a timeline item. start_time is a TIME
// column read back as "HH:MM:SS"; a NULL day_of_week means every day.
type ScheduleItem struct {
	ID         int           `db:"id"`
	ScheduleID int           `db:"schedule_id"`
	VideoID    int           `db:"video_id"`
	StartTime  string        `db:"start_time"`
	Duration   int           `db:"duration"`
	DayOfWeek  pq.Int64Array `db:"day_of_week"`
	StartDate  sql.NullTime  `db:"start_date"`
	EndDate    sql.NullTime  `db:"end_date"`
	Order      int           `db:"sort_order"`
	IsActive   bool          `db:"is_active"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}
