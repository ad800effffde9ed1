package packets

import (
	"encoding/json"

	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type CreateScheduleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description *string         `json:"description"`
	Timezone    string          `json:"timezone"`
	Settings    json.RawMessage `json:"settings"`
}

// UpdateScheduleRequest leaves absent fields unchanged. The lookup code cannot be changed.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Timezone    *string         `json:"timezone"`
	Settings    json.RawMessage `json:"settings"`
}

// ItemRequest is the body of an item insert, update or preview. An absent or
// null day_of_week plays every day; an empty list is rejected.
type ItemRequest struct {
	VideoID   int     `json:"video_id"`
	StartTime string  `json:"start_time" binding:"required"`
	Duration  int     `json:"duration"`
	DayOfWeek *[]int  `json:"day_of_week"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Order     int     `json:"order"`
}

// Candidate converts the request into the engine's candidate for itemID
// (zero for an insert).
func (r ItemRequest) Candidate(itemID int) (timeline.Candidate, error) {
	start, err := timeline.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return timeline.Candidate{}, err
	}

	var days []int
	if r.DayOfWeek != nil {
		days = *r.DayOfWeek
		if days == nil {
			days = []int{}
		}
	}
	daySet, err := timeline.NewDaySet(days)
	if err != nil {
		return timeline.Candidate{}, err
	}

	lo, err := parseOptionalDate("start_date", r.StartDate)
	if err != nil {
		return timeline.Candidate{}, err
	}
	hi, err := parseOptionalDate("end_date", r.EndDate)
	if err != nil {
		return timeline.Candidate{}, err
	}
	dates, err := timeline.Between(lo, hi)
	if err != nil {
		return timeline.Candidate{}, err
	}

	return timeline.Candidate{
		ItemID:  itemID,
		VideoID: r.VideoID,
		Order:   r.Order,
		Slot: timeline.Slot{
			Start:    start,
			Duration: r.Duration,
			Days:     daySet,
			Dates:    dates,
		},
	}, nil
}

func parseOptionalDate(field string, s *string) (*timeline.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := timeline.ParseDate(*s)
	if err != nil {
		return nil, &timeline.InputError{Field: field, Reason: err.Error()}
	}
	return &d, nil
}
