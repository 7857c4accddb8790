package app

import (
	"challenge_backend/internal/config"
	"challenge_backend/internal/middleware"
	"challenge_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. Public routes
	a.registerPublicRoutes(router, c)

	// 2. Everything else needs an access token
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerFriendRoutes(authGroup, c)
		a.registerChallengeRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/google", c.auth.GoogleLogin)
		public.POST("/auth/refresh", c.auth.Refresh)
	}
}

func (a *App) registerUserRoutes(group *gin.RouterGroup, c *controllers) {
	user := group.Group("/user")
	{
		user.GET("/me", c.user.Me)
		user.GET("/:id", c.user.GetUser)
		user.PUT("/profile", c.user.UpdateProfile)
		user.POST("/avatar", c.user.UploadAvatar)
	}

	devices := group.Group("/devices")
	{
		devices.POST("", c.device.RegisterDevice)
		devices.GET("", c.device.ListDevices)
		devices.DELETE("/:token", c.device.UnregisterDevice)
	}

	contacts := group.Group("/contacts")
	{
		contacts.POST("/upload", c.contact.UploadContacts)
		contacts.GET("/recommendations", c.contact.Recommendations)
	}
}

func (a *App) registerFriendRoutes(group *gin.RouterGroup, c *controllers) {
	friends := group.Group("/friends")
	{
		friends.POST("/add", c.friend.AddFriend)
		friends.PUT("/accept", c.friend.AcceptRequest)
		friends.PUT("/reject", c.friend.RejectRequest)
		friends.GET("/list", c.friend.ListFriends)
		friends.GET("/requests", c.friend.ListRequests)
	}
}

func (a *App) registerChallengeRoutes(group *gin.RouterGroup, c *controllers) {
	challenges := group.Group("/challenges")
	{
		challenges.POST("/create", c.challenge.CreateChallenge)
		challenges.POST("/invite", c.challenge.Invite)
		challenges.PUT("/accept", c.challenge.AcceptInvite)
		challenges.PUT("/decline", c.challenge.DeclineInvite)
		challenges.GET("/list", c.challenge.ListChallenges)

		challenges.GET("/:id", c.challenge.GetChallenge)
		challenges.DELETE("/:id", c.challenge.DeleteChallenge)
		challenges.PUT("/:id/title", c.challenge.UpdateTitle)
		challenges.PUT("/:id/description", c.challenge.UpdateDescription)
		challenges.POST("/:id/cancel", c.challenge.CancelChallenge)
		challenges.POST("/:id/submit", c.challenge.Submit)
		challenges.GET("/:id/submissions", c.challenge.ListSubmissions)
		challenges.GET("/:id/has-new", c.challenge.HasNew)
		challenges.DELETE("/:id/participants/:userId", c.challenge.RemoveParticipant)
	}
}
