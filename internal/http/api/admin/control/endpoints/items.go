package endpoints

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
)

func (s *ScheduleController) listItems(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}

	items, err := s.store.ListItems(ctx.Request.Context(), sc.ID)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	response := make([]packets.ItemResponse, 0, len(items))
	for _, it := range items {
		response = append(response, packets.NewItemResponse(it))
	}
	return response, nil
}

func (s *ScheduleController) createItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	result, apiErr := s.placeItem(ctx, user, 0)
	if apiErr != nil {
		return nil, apiErr
	}
	return api.Created{Body: result}, nil
}

func (s *ScheduleController) updateItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	itemID, err := strconv.Atoi(ctx.Param("item_id"))
	if err != nil || itemID <= 0 {
		return nil, api.BadRequest("invalid item id")
	}
	return s.placeItem(ctx, user, itemID)
}

func (s *ScheduleController) placeItem(ctx *gin.Context, user *model.User, itemID int) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}

	var request packets.ItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	cand, err := request.Candidate(itemID)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	placement, err := s.timeline.PlaceItem(ctx.Request.Context(), sc.ID, cand)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	adjusted := make([]int, 0, len(placement.Adjusted))
	for _, a := range placement.Adjusted {
		adjusted = append(adjusted, a.ItemID)
	}
	s.announce(ctx.Request.Context(), sc, notify.TimelineChanged{
		ItemID:   placement.Item.ID,
		Adjusted: adjusted,
		Removed:  placement.Removed,
	})
	return packets.NewPlacementResponse(placement), nil
}

func (s *ScheduleController) deleteItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	itemID, err := strconv.Atoi(ctx.Param("item_id"))
	if err != nil || itemID <= 0 {
		return nil, api.BadRequest("invalid item id")
	}

	if err := s.timeline.RemoveItem(ctx.Request.Context(), sc.ID, itemID); err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	s.announce(ctx.Request.Context(), sc, notify.TimelineChanged{ItemID: itemID, Removed: []int{itemID}})
	return gin.H{"message": "deleted"}, nil
}

// previewItem returns the plan a placement would apply without committing
// anything. ?item_id= previews an update of that item.
func (s *ScheduleController) previewItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	sc, apiErr := s.ownedSchedule(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}

	itemID := 0
	if raw := ctx.Query("item_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return nil, api.BadRequest("invalid item id")
		}
		itemID = id
	}

	var request packets.ItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	cand, err := request.Candidate(itemID)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}

	plan, err := s.timeline.Preview(ctx.Request.Context(), sc.ID, cand)
	if err != nil {
		return nil, api.ErrorFrom(ctx, err)
	}
	return packets.NewPlanResponse(plan.Adjusted, plan.Removed), nil
}
