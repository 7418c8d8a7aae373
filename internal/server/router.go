// Package server assembles the HTTP router shared by the API binary and the
// end-to-end tests.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"settleup/internal/config"
	"settleup/internal/handlers"
	"settleup/internal/metrics"
	"settleup/internal/middleware"
	"settleup/internal/services"

	_ "settleup/internal/docs" // Import swagger docs
)

// Deps holds everything the router needs to serve requests.
type Deps struct {
	Config      *config.Config
	Metrics     *metrics.Metrics
	Users       services.UserServicer
	Settlements services.SettlementServicer
	Comments    services.CommentServicer
	Audit       services.AuditServicer
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(deps Deps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Audit)
	settlementHandler := handlers.NewSettlementHandler(deps.Settlements, deps.Audit)
	commentHandler := handlers.NewCommentHandler(deps.Comments, deps.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(deps.Config.CORSAllowedOrigins))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", middleware.APIKeyMiddleware(deps.Config.MetricsAPIKey), deps.Metrics.Handler())
	}

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	v1.GET("/settlements/:id", middleware.OptionalAuth(), settlementHandler.GetSettlement)
	v1.GET("/settlements/:id/summary", settlementHandler.GetSummary)
	v1.GET("/settlements/:id/comments", commentHandler.GetComments)
	v1.POST("/settlements/:id/comments/guest", commentHandler.CreateGuestComment)

	v1.PUT("/comments/:id/guest", commentHandler.UpdateGuestComment)
	v1.POST("/comments/:id/verify", commentHandler.VerifyGuestPassword)
	v1.DELETE("/comments/:id/guest", commentHandler.DeleteGuestComment)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Settlement routes
	settlements := protected.Group("/settlements")
	settlements.POST("", settlementHandler.CreateSettlement)
	settlements.GET("", settlementHandler.GetUserSettlements)
	settlements.PUT("/:id/sheet", settlementHandler.SaveSheet)
	settlements.POST("/:id/draft", settlementHandler.QueueDraft)
	settlements.GET("/:id/save-status", settlementHandler.GetDraftStatus)
	settlements.POST("/:id/edits", settlementHandler.ApplyEdit)
	settlements.POST("/:id/complete", settlementHandler.CompleteSettlement)
	settlements.POST("/:id/reactivate", settlementHandler.ReactivateSettlement)
	settlements.DELETE("/:id", settlementHandler.DeleteSettlement)
	settlements.POST("/:id/comments", commentHandler.CreateComment)

	// Comment routes
	comments := protected.Group("/comments")
	comments.PUT("/:id", commentHandler.UpdateComment)
	comments.DELETE("/:id", commentHandler.DeleteComment)
	comments.PUT("/:id/pin", commentHandler.PinComment)

	return router
}
