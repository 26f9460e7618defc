// Package router assembles the gin engine from registered modules.
package router

import (
	"net/http"
	"strings"

	apphttp "nurture_backend/internal/http"
	"nurture_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the root engine, mounts shared middleware, and lets each module
// register its routes.
func New(app *apphttp.App) *gin.Engine {
	if !strings.EqualFold(gin.Mode(), gin.TestMode) {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	engine.GET("/api/health", func(c *gin.Context) {
		status := http.StatusOK
		payload := gin.H{"status": "ok"}
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				payload = gin.H{"status": "degraded", "error": "database unreachable"}
			}
		}
		c.JSON(status, payload)
	})

	limiter := httpkit.NewCaptureRateLimiter(app.Logger)

	v1 := engine.Group("/api/v1")
	public := v1.Group("")
	public.Use(limiter.RateLimit())

	admin := v1.Group("/admin")
	webhooks := v1.Group("/webhooks")
	webhooks.Use(httpkit.WebhookAuth(app.Config))

	ctx := &apphttp.RouterContext{
		Engine:             engine,
		V1:                 v1,
		Public:             public,
		Admin:              admin,
		Webhooks:           webhooks,
		CaptureRateLimiter: limiter,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Debug("registered module routes", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
	}

	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}

	return cors.New(cfg)
}
