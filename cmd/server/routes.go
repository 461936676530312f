package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nixie-Tech-LLC/troupe/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/troupe/internal/http/api/auth/endpoints"
	controlapi "github.com/Nixie-Tech-LLC/troupe/internal/http/api/control/endpoints"
	"github.com/Nixie-Tech-LLC/troupe/internal/http/middleware"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, app *App) {
	cfg := app.Config

	r.Use(middleware.RequestLogger())
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
		Auth:   false,
	},
		authapi.AuthPublicModule(cfg.JWTSecret, cfg.TokenTTL, app.Store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
		Store:     app.Store,
	},
		// session endpoints that require auth
		authapi.AuthSessionModule(app.Store, cfg.DefaultTimezone),
		// control modules
		controlapi.ProjectModule(app.Store, app.Rehearsals, cfg.DefaultTimezone),
		controlapi.RehearsalModule(app.Rehearsals),
		controlapi.AvailabilityModule(app.Store, app.Ledger),
		controlapi.EventModule(app.Store, app.Events),
	)
}
