package endpoints

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/tv/packets"
	cache "github.com/Nixie-Tech-LLC/marquee/internal/redis"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

const cacheHeader = "X-Cache"

type TimelineController struct {
	store db.Store
	cache *cache.TimelineCache
}

func NewTimelineController(store db.Store, tc *cache.TimelineCache) *TimelineController {
	return &TimelineController{store: store, cache: tc}
}

func TimelineModule(ctl *TimelineController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/timeline/:code", ctl.getTimeline)
	})
}

// GET /api/tv/timeline/:code[?date=YYYY-MM-DD]
func (t *TimelineController) getTimeline(ctx *gin.Context) (any, *api.APIError) {
	code := strings.ToUpper(strings.TrimSpace(ctx.Param("code")))
	if len(code) != db.LookupCodeLength {
		return nil, api.ErrorFrom(ctx, timeline.NotFoundf("schedule %q", code))
	}

	field := cache.AllDates
	var day *timeline.Date
	if raw := ctx.Query("date"); raw != "" {
		d, err := timeline.ParseDate(raw)
		if err != nil {
			return nil, api.ErrorFrom(ctx, &timeline.InputError{Field: "date", Reason: err.Error()})
		}
		day = &d
		field = d.String()
	}

	cached, gen, ok := t.cache.Get(ctx.Request.Context(), code, field)
	if ok {
		ctx.Header(cacheHeader, "HIT")
		return json.RawMessage(cached), nil
	}
	ctx.Header(cacheHeader, "MISS")

	sc, err := t.store.GetScheduleByCode(ctx.Request.Context(), code)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}
	items, err := t.store.ListItems(ctx.Request.Context(), sc.ID)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	settings := json.RawMessage(sc.Settings)
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	response := packets.TimelineResponse{
		LookupCode: sc.LookupCode,
		Name:       sc.Name,
		Timezone:   sc.Timezone,
		Settings:   settings,
		Items:      make([]packets.TimelineItem, 0, len(items)),
	}
	if day != nil {
		s := day.String()
		response.Date = &s
	}
	for _, it := range items {
		if day != nil && !it.PlaysOn(*day) {
			continue
		}
		response.Items = append(response.Items, timelineItem(it))
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}
	t.cache.Set(ctx.Request.Context(), code, field, gen, payload)

	log.Debug().Str("lookup_code", code).Str("date", field).Int("items", len(response.Items)).Msg("timeline served")
	return json.RawMessage(payload), nil
}

func timelineItem(it timeline.Item) packets.TimelineItem {
	out := packets.TimelineItem{
		ID:        it.ID,
		VideoID:   it.VideoID,
		StartTime: it.Start.String(),
		EndTime:   it.End().String(),
		Duration:  it.Duration,
		DayOfWeek: it.Days.Days(),
		Order:     it.Order,
	}
	if d := it.Dates.Start(); d != nil {
		s := d.String()
		out.StartDate = &s
	}
	if d := it.Dates.End(); d != nil {
		s := d.String()
		out.EndDate = &s
	}
	return out
}
