package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridedispatch/internal/auth"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler *handler.BookingHandler
	DriverHandler  *handler.DriverHandler
	ChatHandler    *handler.ChatHandler
	WSHandler      *handler.WSHandler
	Verifier       auth.Verifier
	ResponseCache  middleware.ResponseCache
	NewRelicApp    *newrelic.Application
	CORSOrigin     string
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.CORSOrigin))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")

	// The websocket handshake authenticates itself so browsers can pass
	// the token as a query parameter.
	v1.GET("/ws", deps.WSHandler.Connect)

	api := v1.Group("")
	api.Use(middleware.Auth(deps.Verifier))
	api.Use(middleware.NewRelicCaller())
	api.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.Logger))
	{
		// Booking routes.
		bookings := api.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.Create)
			bookings.GET("", deps.BookingHandler.List)
			bookings.GET("/stats", deps.BookingHandler.Stats)
			bookings.GET("/:id", deps.BookingHandler.Get)
			bookings.POST("/:id/accept", deps.BookingHandler.Accept)
			bookings.POST("/:id/decline", deps.BookingHandler.Decline)
			bookings.PATCH("/:id/status", deps.BookingHandler.SetStatus)
			bookings.POST("/:id/cancel", deps.BookingHandler.Cancel)
			bookings.GET("/:id/messages", deps.ChatHandler.History)
			bookings.POST("/:id/messages", deps.ChatHandler.Send)
			bookings.POST("/:id/messages/read", deps.ChatHandler.MarkRead)
		}

		// Chat routes across bookings.
		api.GET("/messages/unread", deps.ChatHandler.Unread)

		// Driver routes.
		drivers := api.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.PATCH("/me/availability", deps.DriverHandler.SetAvailability)
			drivers.GET("/me/bookings", deps.DriverHandler.Bookings)
			drivers.GET("/me/stats", deps.DriverHandler.Stats)
		}
	}

	return router
}
