/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, h *Handlers) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/jira-proxy", h.JiraProxy)
		api.POST("/sprints", h.Sprints)
		api.POST("/report", h.Report)
		api.POST("/report/edit", h.EditReport)
		api.POST("/report/csv", h.ExportCSV)
		api.GET("/report/latest", h.LatestReport)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/run", h.RunNow)
		admin.GET("/last-run", h.LastRun)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	cc.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cc.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	return cc
}
