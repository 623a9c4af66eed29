package app

import (
	"github.com/gin-gonic/gin"
	"github.com/threadbrief/core/internal/modules/brief"
	"github.com/threadbrief/core/internal/pkg/response"
)

func (a *App) registerRoutes(svc *brief.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "env": a.cfg.Env})
	})

	api := r.Group("/api/v1")
	brief.NewHandler(svc, a.logger).RegisterRoutes(api)
}
