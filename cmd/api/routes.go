package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pharmacy-voice-agent/internal/auth"
	"pharmacy-voice-agent/internal/httpapi"
	"pharmacy-voice-agent/internal/ingress"
)

type registerDeps struct {
	auth     *auth.Manager
	api      httpapi.Handlers
	webhooks ingress.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	// public
	health := func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	}
	r.GET("/healthz", health)
	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	voice := r.Group("/webhooks/voice")
	{
		voice.POST("/status", deps.webhooks.Status)
		voice.POST("/recording", deps.webhooks.Recording)
		voice.POST("/transcription", deps.webhooks.Transcription)
		voice.POST("/script", deps.webhooks.Script)
		voice.POST("/response", deps.webhooks.Response)
	}

	// Token issuance is the only unauthenticated API route.
	r.POST("/v1/auth/token", deps.api.IssueToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.auth.RequireAccessToken())
	{
		checks := v1.Group("/checks")
		{
			checks.POST("", deps.api.InitiateCheck)
			checks.GET("/:id/status", deps.api.CheckStatus)
		}

		calls := v1.Group("/calls")
		{
			calls.GET("", deps.api.ListSessions)
			calls.GET("/:id", deps.api.GetSession)
			calls.DELETE("", deps.api.PurgeSessions)
		}

		pharmacies := v1.Group("/pharmacies")
		{
			pharmacies.GET("", deps.api.ListDestinations)
			pharmacies.GET("/search", deps.api.FindDestinations)
			pharmacies.GET("/:id", deps.api.GetDestination)
			pharmacies.POST("", deps.api.RegisterDestination)
		}
	}
}
