package endpoints

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
	cache "github.com/Nixie-Tech-LLC/marquee/internal/redis"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type ScheduleController struct {
	store     db.Store
	timeline  *timeline.Coordinator
	cache     *cache.TimelineCache
	publisher *notify.Publisher
}

// NewScheduleController wires the admin endpoints. cache and publisher may be
// nil when those services are not configured.
func NewScheduleController(store db.Store, coord *timeline.Coordinator, tc *cache.TimelineCache, pub *notify.Publisher) *ScheduleController {
	return &ScheduleController{store: store, timeline: coord, cache: tc, publisher: pub}
}

func ScheduleModule(ctl *ScheduleController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.createSchedule)
		c.GET("/schedules/:id", ctl.getSchedule)
		c.PUT("/schedules/:id", ctl.updateSchedule)
		c.DELETE("/schedules/:id", ctl.deleteSchedule)

		// timeline items
		c.GET("/schedules/:id/items", ctl.listItems)
		c.POST("/schedules/:id/items", ctl.createItem)
		c.POST("/schedules/:id/items/preview", ctl.previewItem)
		c.PUT("/schedules/:id/items/:item_id", ctl.updateItem)
		c.DELETE("/schedules/:id/items/:item_id", ctl.deleteItem)
	})
}

func (s *ScheduleController) listSchedules(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	list, err := s.store.ListSchedules(ctx.Request.Context(), user.CompanyID)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	response := make([]packets.ScheduleResponse, 0, len(list))
	for _, sc := range list {
		response = append(response, packets.NewScheduleResponse(sc))
	}
	return response, nil
}

func (s *ScheduleController) createSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	tz := request.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if apiErr := checkTimezone(tz); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := checkSettings(request.Settings); apiErr != nil {
		return nil, apiErr
	}

	sc, err := s.store.CreateSchedule(ctx.Request.Context(), model.NewSchedule{
		CompanyID:   user.CompanyID,
		CreatedBy:   user.ID,
		Name:        request.Name,
		Description: request.Description,
		Timezone:    tz,
		Settings:    types.JSONText(request.Settings),
	})
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	log.Info().
		Int("schedule_id", sc.ID).
		Int("company_id", sc.CompanyID).
		Str("lookup_code", sc.LookupCode).
		Str("request_id", middleware.RequestID(ctx)).
		Msg("schedule created")
	return api.Created{Body: packets.NewScheduleResponse(sc)}, nil
}

func (s *ScheduleController) getSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewScheduleResponse(sc), nil
}

func (s *ScheduleController) updateSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	if !sc.IsActive {
		return nil, api.ErrorFrom(ctx, timeline.NotFoundf("schedule %d is inactive", sc.ID))
	}

	var request packets.UpdateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if request.Name != nil && *request.Name == "" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "name cannot be empty", Field: "name"}
	}
	if request.Timezone != nil {
		if apiErr := checkTimezone(*request.Timezone); apiErr != nil {
			return nil, apiErr
		}
	}
	if apiErr := checkSettings(request.Settings); apiErr != nil {
		return nil, apiErr
	}

	updated, err := s.store.UpdateSchedule(ctx.Request.Context(), sc.ID, model.ScheduleUpdate{
		Name:        request.Name,
		Description: request.Description,
		Timezone:    request.Timezone,
		Settings:    types.JSONText(request.Settings),
	})
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	s.announce(ctx.Request.Context(), updated, notify.TimelineChanged{})
	return packets.NewScheduleResponse(updated), nil
}

// deleteSchedule deactivates the schedule and all of its items.
func (s *ScheduleController) deleteSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}

	if err := s.store.DeactivateSchedule(ctx.Request.Context(), sc.ID); err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	s.announce(ctx.Request.Context(), sc, notify.TimelineChanged{})
	return gin.H{"message": "deleted"}, nil
}

// ownedSchedule loads the :id schedule and hides schedules of other companies.
func (s *ScheduleController) ownedSchedule(ctx *gin.Context, user *model.User) (model.Schedule, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return model.Schedule{}, api.BadRequest("invalid schedule id")
	}

	sc, err := s.store.GetSchedule(ctx.Request.Context(), id)
	if err != nil {
		return model.Schedule{}, api.ErrorFrom(ctx, err)
	}
	if sc.CompanyID != user.CompanyID {
		return model.Schedule{}, api.ErrorFrom(ctx, timeline.NotFoundf("schedule %d", id))
	}
	return sc, nil
}

// announce drops cached device timelines and tells devices to refetch. The
// change is already committed, so failures are only logged.
func (s *ScheduleController) announce(ctx context.Context, sc model.Schedule, msg notify.TimelineChanged) {
	_ = s.cache.Invalidate(ctx, sc.LookupCode)

	msg.LookupCode = sc.LookupCode
	msg.ScheduleID = sc.ID
	if err := s.publisher.Publish(ctx, msg); err != nil {
		log.Warn().Err(err).Int("schedule_id", sc.ID).Msg("timeline notification failed")
	}
}

func checkTimezone(tz string) *api.APIError {
	if tz == "" {
		return &api.APIError{Code: http.StatusBadRequest, Message: "timezone cannot be empty", Field: "timezone"}
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return &api.APIError{Code: http.StatusBadRequest, Message: "unknown timezone " + strconv.Quote(tz), Field: "timezone"}
	}
	return nil
}

func checkSettings(raw json.RawMessage) *api.APIError {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return &api.APIError{Code: http.StatusBadRequest, Message: "settings must be a JSON object", Field: "settings"}
	}
	return nil
}
