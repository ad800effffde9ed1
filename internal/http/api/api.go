package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type APIError struct {
	Code    int
	Message string
	Field   string
}

// Created marks a handler result that should be sent with 201.
type Created struct {
	Body any
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, apiErr := h(ctx, user)
		respond(ctx, result, apiErr)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		respond(ctx, result, apiErr)
	}
}

func respond(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		body := gin.H{"error": apiErr.Message}
		if apiErr.Field != "" {
			body["field"] = apiErr.Field
		}
		ctx.JSON(apiErr.Code, body)
		return
	}
	if created, ok := result.(Created); ok {
		ctx.JSON(http.StatusCreated, created.Body)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// BadRequest is for malformed requests rejected before the engine runs.
func BadRequest(message string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: message}
}

// ErrorFrom maps the timeline error taxonomy onto HTTP statuses.
func ErrorFrom(ctx *gin.Context, err error) *APIError {
	var inputErr *timeline.InputError
	switch {
	case errors.As(err, &inputErr):
		return &APIError{Code: http.StatusBadRequest, Message: inputErr.Error(), Field: inputErr.Field}
	case errors.Is(err, timeline.ErrInvalidInput):
		return &APIError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, timeline.ErrNotFound):
		return &APIError{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, timeline.ErrStorage):
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("storage failure")
		return &APIError{Code: http.StatusServiceUnavailable, Message: "storage unavailable, retry later"}
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("unexpected error")
		return &APIError{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}
