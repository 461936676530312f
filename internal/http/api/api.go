package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/troupe/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// APIError is what a handler returns instead of writing an error itself.
type APIError struct {
	Code      int
	Message   string
	Retryable bool
}

func (e *APIError) body() gin.H {
	if e.Retryable {
		return gin.H{"error": e.Message, "retryable": true}
	}
	return gin.H{"error": e.Message}
}

// Status lets a handler pick a success code other than 200.
type Status struct {
	Code int
	Body any
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func respond(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		ctx.JSON(apiErr.Code, apiErr.body())
		return
	}
	if s, ok := result.(Status); ok {
		if s.Body == nil {
			ctx.Status(s.Code)
			return
		}
		ctx.JSON(s.Code, s.Body)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

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
