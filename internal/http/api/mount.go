package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/middleware"
)

// Module attaches one resource's endpoints to a Controller.
type Module interface {
	Mount(c *Controller)
}

type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// GroupConfig describes one route group. With Auth set, every request must
// carry a token signed with SecretKey for a user Store knows.
type GroupConfig struct {
	Prefix     string
	Auth       bool
	SecretKey  string
	Store      db.Store
	Middleware []gin.HandlerFunc
}

// MountGroup creates the group under parent and mounts modules on it. Extra
// middleware runs before authentication.
func MountGroup(parent gin.IRouter, cfg GroupConfig, modules ...Module) *gin.RouterGroup {
	grp := parent.Group(cfg.Prefix, cfg.Middleware...)
	if cfg.Auth {
		if cfg.SecretKey == "" || cfg.Store == nil {
			log.Fatal().Str("prefix", cfg.Prefix).Msg("authenticated group needs a secret and a user store")
		}
		grp.Use(middleware.JWTMiddleware(cfg.SecretKey, cfg.Store))
	}

	controller := &Controller{Group: grp}
	for _, m := range modules {
		m.Mount(controller)
	}
	return grp
}
