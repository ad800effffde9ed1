package packets

import (
	"encoding/json"
	"time"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

// ScheduleResponse mirrors model.Schedule but flattens times to RFC3339.
type ScheduleResponse struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	LookupCode  string          `json:"lookup_code"`
	IsActive    bool            `json:"is_active"`
	Timezone    string          `json:"timezone"`
	Settings    json.RawMessage `json:"settings"`
	CreatedBy   int             `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func NewScheduleResponse(sc model.Schedule) ScheduleResponse {
	settings := json.RawMessage(sc.Settings)
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	return ScheduleResponse{
		ID:          sc.ID,
		Name:        sc.Name,
		Description: sc.Description,
		LookupCode:  sc.LookupCode,
		IsActive:    sc.IsActive,
		Timezone:    sc.Timezone,
		Settings:    settings,
		CreatedBy:   sc.CreatedBy,
		CreatedAt:   sc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   sc.UpdatedAt.Format(time.RFC3339),
	}
}

// ItemResponse renders a timeline item. day_of_week is null when the item plays every day.
type ItemResponse struct {
	ID         int     `json:"id"`
	ScheduleID int     `json:"schedule_id"`
	VideoID    int     `json:"video_id"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Duration   int     `json:"duration"`
	DayOfWeek  []int   `json:"day_of_week"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Order      int     `json:"order"`
	IsActive   bool    `json:"is_active"`
}

func NewItemResponse(it timeline.Item) ItemResponse {
	return ItemResponse{
		ID:         it.ID,
		ScheduleID: it.ScheduleID,
		VideoID:    it.VideoID,
		StartTime:  it.Start.String(),
		EndTime:    it.End().String(),
		Duration:   it.Duration,
		DayOfWeek:  it.Days.Days(),
		StartDate:  dateString(it.Dates.Start()),
		EndDate:    dateString(it.Dates.End()),
		Order:      it.Order,
		IsActive:   it.Active,
	}
}

func dateString(d *timeline.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

type AdjustmentResponse struct {
	ItemID       int    `json:"item_id"`
	Action       string `json:"action"`
	OldStartTime string `json:"old_start_time"`
	OldDuration  int    `json:"old_duration"`
	NewStartTime string `json:"new_start_time"`
	NewDuration  int    `json:"new_duration"`
}

// PlanResponse lists what a placement changes besides the candidate itself.
type PlanResponse struct {
	Adjusted []AdjustmentResponse `json:"adjusted"`
	Removed  []int                `json:"removed"`
}

func NewPlanResponse(adjusted []timeline.Adjustment, removed []int) PlanResponse {
	out := PlanResponse{
		Adjusted: make([]AdjustmentResponse, 0, len(adjusted)),
		Removed:  []int{},
	}
	for _, a := range adjusted {
		out.Adjusted = append(out.Adjusted, AdjustmentResponse{
			ItemID:       a.ItemID,
			Action:       a.Action.String(),
			OldStartTime: a.OldStart.String(),
			OldDuration:  a.OldDuration,
			NewStartTime: a.NewStart.String(),
			NewDuration:  a.NewDuration,
		})
	}
	out.Removed = append(out.Removed, removed...)
	return out
}

type PlacementResponse struct {
	Item ItemResponse `json:"item"`
	PlanResponse
}

func NewPlacementResponse(p timeline.Placement) PlacementResponse {
	return PlacementResponse{
		Item:         NewItemResponse(p.Item),
		PlanResponse: NewPlanResponse(p.Adjusted, p.Removed),
	}
}
