package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/troupe/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// Controller is the gin group a Module attaches its endpoints to. Handlers
// registered through it receive the authenticated user.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithAuth) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithAuth) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUT(path string, h HandlerFuncWithAuth) {
	c.Group.PUT(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithAuth) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}

// Public registers a handler that runs without a current user.
func (c *Controller) Public(method, path string, h HandlerFunc) {
	c.Group.Handle(method, path, ResolveEndpoint(h))
}

// Stream registers a GET handler that owns the response, for upgrades to
// long-lived connections.
func (c *Controller) Stream(path string, h func(ctx *gin.Context, user *model.User)) {
	c.Group.GET(path, func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h(ctx, user)
	})
}
