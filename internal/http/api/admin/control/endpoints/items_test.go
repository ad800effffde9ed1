package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/admin/control/packets"
	cache "github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

func itemBody(start string, duration int) map[string]any {
	return map[string]any{"video_id": 5, "start_time": start, "duration": duration}
}

func TestPlaceItemsThroughAPI(t *testing.T) {
	h := setup(t)
	sc := h.createSchedule(t, "Lobby")

	w := h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("09:00", 1800))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[packets.PlacementResponse](t, w)
	assert.Equal(t, "09:00:00", first.Item.StartTime)
	assert.Equal(t, "09:30:00", first.Item.EndTime)
	assert.Nil(t, first.Item.DayOfWeek)
	assert.Empty(t, first.Adjusted)
	assert.Empty(t, first.Removed)

	h.cache.Set(context.Background(), sc.LookupCode, cache.AllDates, 0, []byte("stale"))

	w = h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("09:15", 1800))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[packets.PlacementResponse](t, w)
	require.Len(t, second.Adjusted, 1)
	adj := second.Adjusted[0]
	assert.Equal(t, first.Item.ID, adj.ItemID)
	assert.Equal(t, "trim_end", adj.Action)
	assert.Equal(t, "09:00:00", adj.OldStartTime)
	assert.Equal(t, 1800, adj.OldDuration)
	assert.Equal(t, 900, adj.NewDuration)

	_, _, cached := h.cache.Get(context.Background(), sc.LookupCode, cache.AllDates)
	assert.False(t, cached)

	w = h.do(http.MethodGet, "/api/admin/schedules/1/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]packets.ItemResponse](t, w)
	require.Len(t, items, 2)
	assert.Equal(t, 900, items[0].Duration)
	assert.Equal(t, "09:15:00", items[1].StartTime)
}

func TestUpdateAndDeleteItem(t *testing.T) {
	h := setup(t)
	h.createSchedule(t, "Lobby")

	a := decode[packets.PlacementResponse](t, h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("09:00", 1800)))
	b := decode[packets.PlacementResponse](t, h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("10:00", 1800)))

	body := itemBody("09:00", 3600+900)
	body["day_of_week"] = []int{1, 3, 5}
	w := h.do(http.MethodPut, fmt.Sprintf("/api/admin/schedules/1/items/%d", a.Item.ID), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[packets.PlacementResponse](t, w)
	assert.Equal(t, a.Item.ID, updated.Item.ID)
	assert.Equal(t, []int{1, 3, 5}, updated.Item.DayOfWeek)
	require.Len(t, updated.Adjusted, 1)
	assert.Equal(t, b.Item.ID, updated.Adjusted[0].ItemID)
	assert.Equal(t, "trim_start", updated.Adjusted[0].Action)
	assert.Equal(t, "10:15:00", updated.Adjusted[0].NewStartTime)

	path := fmt.Sprintf("/api/admin/schedules/1/items/%d", b.Item.ID)
	w = h.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPut, path, itemBody("12:00", 60))
	assert.Equal(t, http.StatusNotFound, w.Code, "inactive items cannot be revived by update")

	w = h.do(http.MethodPut, "/api/admin/schedules/1/items/9999", itemBody("12:00", 60))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemValidation(t *testing.T) {
	h := setup(t)
	h.createSchedule(t, "Lobby")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"zero duration", itemBody("09:00", 0), "duration"},
		{"missing video", map[string]any{"start_time": "09:00", "duration": 60}, "video_id"},
		{"bad start time", itemBody("25:00", 60), "start_time"},
		{"empty day list", with(itemBody("09:00", 60), "day_of_week", []int{}), "day_of_week"},
		{"weekday out of range", with(itemBody("09:00", 60), "day_of_week", []int{7}), "day_of_week"},
		{"bad start date", with(itemBody("09:00", 60), "start_date", "2025-13-01"), "start_date"},
		{"end before start", with(with(itemBody("09:00", 60), "start_date", "2025-06-10"), "end_date", "2025-06-01"), "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/admin/schedules/1/items", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.field, decode[map[string]string](t, w)["field"])
		})
	}
	assert.Empty(t, h.store.Repo.Items(1), "rejected candidates must not write")
}

func with(m map[string]any, key string, v any) map[string]any {
	m[key] = v
	return m
}

func TestNullDayOfWeekMeansEveryDay(t *testing.T) {
	h := setup(t)
	h.createSchedule(t, "Lobby")

	w := h.do(http.MethodPost, "/api/admin/schedules/1/items",
		`{"video_id":5,"start_time":"09:00","duration":60,"day_of_week":null}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, decode[packets.PlacementResponse](t, w).Item.DayOfWeek)
}

func TestPreviewItem(t *testing.T) {
	h := setup(t)
	h.createSchedule(t, "Lobby")

	a := decode[packets.PlacementResponse](t, h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("09:00", 600)))
	b := decode[packets.PlacementResponse](t, h.do(http.MethodPost, "/api/admin/schedules/1/items", itemBody("10:00", 3600)))

	w := h.do(http.MethodPost, "/api/admin/schedules/1/items/preview", itemBody("08:00", 2*3600+1800))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	plan := decode[packets.PlanResponse](t, w)
	assert.Equal(t, []int{a.Item.ID}, plan.Removed)
	require.Len(t, plan.Adjusted, 1)
	assert.Equal(t, b.Item.ID, plan.Adjusted[0].ItemID)
	assert.Equal(t, "trim_start", plan.Adjusted[0].Action)

	assert.Len(t, h.store.Repo.ActiveItems(1), 2, "preview must not write")

	w = h.do(http.MethodPost, fmt.Sprintf("/api/admin/schedules/1/items/preview?item_id=%d", a.Item.ID), itemBody("09:00", 600))
	require.Equal(t, http.StatusOK, w.Code)
	plan = decode[packets.PlanResponse](t, w)
	assert.Empty(t, plan.Adjusted)
	assert.Empty(t, plan.Removed)

	w = h.do(http.MethodPost, "/api/admin/schedules/1/items/preview?item_id=x", itemBody("09:00", 600))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
