package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/zeroverse/zeroverse/internal/ws"
)

// One write every 3 seconds per IP, no burst. Enough for humans, annoying
// for scripts.
const (
	writeRateRPS   = 1.0 / 3.0
	writeRateBurst = 1
)

// SetupRoutes wires middleware and all API routes onto the router.
func SetupRoutes(router *gin.Engine, env *Env, corsOrigin string) {
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limiter := NewIPRateLimiter(rate.Limit(writeRateRPS), writeRateBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.Cleanup()
		}
	}()
	writeLimited := RateLimitMiddleware(limiter)

	authed := AuthMiddleware(env.Tokens)
	maybeAuthed := OptionalAuthMiddleware(env.Tokens)
	admin := AdminMiddleware()

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", env.Signup)
		authGroup.POST("/verify-otp", env.VerifyOTP)
		authGroup.POST("/resend-otp", env.ResendOTP)
		authGroup.POST("/login", env.Login)
		authGroup.POST("/forgot-password", env.ForgotPassword)
		authGroup.POST("/reset-password", env.ResetPassword)
		authGroup.GET("/profile", authed, env.Profile)
		authGroup.PUT("/change-password", authed, env.ChangePassword)
		authGroup.DELETE("/delete-account", authed, env.DeleteAccount)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", env.GetPosts)
		posts.GET("/leaderboard", env.Leaderboard)
		posts.GET("/:id", maybeAuthed, env.GetPost)
		posts.POST("", authed, writeLimited, env.CreatePost)
		posts.PUT("/:id", authed, env.UpdatePost)
		posts.DELETE("/:id", authed, env.DeletePost)
		posts.PUT("/:id/like", authed, env.LikePost)
		posts.PUT("/:id/dislike", authed, env.DislikePost)
		posts.POST("/:id/comments", authed, writeLimited, env.AddComment)
		posts.PUT("/:id/comments/:commentId", authed, env.UpdateComment)
		posts.DELETE("/:id/comments/:commentId", authed, env.DeleteComment)
	}

	confessions := api.Group("/confessions", authed)
	{
		confessions.POST("", writeLimited, env.CreateConfession)
		confessions.PATCH("/:id", env.UpdateConfession)
		confessions.DELETE("/:id", env.DeleteConfession)

		confessions.GET("/pending", admin, env.GetPendingConfessions)
		confessions.PATCH("/:id/approve", admin, env.ApproveConfession)
		confessions.DELETE("/:id/reject", admin, env.RejectConfession)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(env.Hub, c.Writer, c.Request)
	})
}
