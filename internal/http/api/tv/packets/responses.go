package packets

// RESPONSES FOR /api/tv/timeline/*

import "encoding/json"

// TimelineResponse is everything a device needs to play a schedule.
type TimelineResponse struct {
	LookupCode string          `json:"lookup_code"`
	Name       string          `json:"name"`
	Timezone   string          `json:"timezone"`
	Settings   json.RawMessage `json:"settings"`
	Date       *string         `json:"date,omitempty"`
	Items      []TimelineItem  `json:"items"`
}

// TimelineItem is one active slot. day_of_week is null when it plays every day.
type TimelineItem struct {
	ID        int     `json:"id"`
	VideoID   int     `json:"video_id"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Duration  int     `json:"duration"`
	DayOfWeek []int   `json:"day_of_week"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Order     int     `json:"order"`
}
