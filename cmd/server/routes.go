package main

import (
	"github.com/gin-gonic/gin"

	"creative-studio-backend/internal/config"
	"creative-studio-backend/internal/handlers"
	"creative-studio-backend/internal/middleware"
)

type routes struct {
	auth    *handlers.AuthHandler
	studio  *handlers.StudioHandler
	video   *handlers.VideoHandler
	account *handlers.AccountHandler
	admin   *handlers.AdminHandler
	events  *handlers.EventsHandler
	limiter *middleware.RateLimiter
}

func setupRouter(cfg *config.Config, r routes) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	public := router.Group("/api/v1")
	public.GET("/health", handlers.HealthHandler)
	public.POST("/auth/signup", r.auth.Signup)
	public.POST("/auth/login", r.auth.Login)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/auth/logout", r.auth.Logout)

	// Workspace state and inputs
	api.GET("/studio", r.studio.GetStudio)
	api.GET("/studio/styles", r.studio.Styles)
	api.POST("/studio/mode", r.studio.SetMode)
	api.POST("/studio/reset", r.studio.Reset)
	api.POST("/studio/image", r.studio.UploadImage)
	api.PUT("/studio/prompt", r.studio.SetPrompt)
	api.POST("/studio/suggestion", r.studio.AppendSuggestion)
	api.PUT("/studio/style-reference", r.studio.SetStyleReference)
	api.DELETE("/studio/style-reference", r.studio.ClearStyleReference)
	api.POST("/studio/tool", r.studio.SelectTool)
	api.PUT("/studio/mask", r.studio.SetMask)
	api.DELETE("/studio/mask", r.studio.ClearMask)
	api.PUT("/studio/magic-coords", r.studio.SetMagicCoords)
	api.POST("/studio/undo", r.studio.Undo)
	api.POST("/studio/redo", r.studio.Redo)
	api.POST("/studio/history/:history_id/revert", r.studio.RevertTo)
	api.POST("/studio/export", r.studio.Export)

	// Throttled: generation is credit-metered, elevation checks a secret.
	limited := api.Group("")
	limited.Use(r.limiter.Middleware())
	limited.POST("/studio/generate", r.studio.Generate)
	limited.POST("/studio/edit", r.studio.ApplyEdit)
	limited.POST("/studio/variations", r.studio.GenerateVariations)
	limited.POST("/studio/magic", r.studio.PlaceMagicObject)
	limited.POST("/studio/expand", r.studio.ExpandCanvas)
	limited.POST("/studio/erase", r.studio.Erase)
	limited.POST("/studio/enhance", r.studio.Enhance)
	limited.POST("/studio/cutout", r.studio.Cutout)
	limited.POST("/studio/styles/:style_id", r.studio.ApplyStyle)
	limited.POST("/video", r.video.Submit)
	limited.POST("/account/elevate", r.account.Elevate)

	api.GET("/video", r.video.Status)
	api.GET("/video/result", r.video.Result)

	// Account
	api.GET("/account", r.account.GetAccount)
	api.POST("/account/ad-reward", r.account.AdReward)
	api.POST("/account/upgrade", r.account.Upgrade)

	// Admin
	admin := api.Group("/admin")
	admin.Use(r.admin.RequireAdmin())
	admin.GET("/users/:user_id", r.admin.GetUser)
	admin.PUT("/users/:user_id/credits", r.admin.SetCredits)
	admin.PUT("/users/:user_id/plan", r.admin.SetPlan)

	// Notifications
	api.GET("/events", r.events.Stream)

	return router
}
