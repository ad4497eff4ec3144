package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shiftlog/internal/handler"
	"shiftlog/internal/middleware"
	"shiftlog/internal/store"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	DriverHandler *handler.DriverHandler
	ShiftHandler  *handler.ShiftHandler
	TripHandler   *handler.TripHandler
	StatsHandler  *handler.StatsHandler
	LedgerStore   store.LedgerStore
	RedisClient   *redis.Client
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check. Degraded when the ledger store is unreachable.
	router.GET("/health", func(c *gin.Context) {
		if err := deps.LedgerStore.Ping(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Add)
			drivers.GET("", deps.DriverHandler.GetAll)
		}

		// Shift lifecycle routes.
		shift := v1.Group("/shift")
		{
			shift.GET("", deps.ShiftHandler.GetState)
			shift.POST("/start", deps.ShiftHandler.Start)
			shift.POST("/end", deps.ShiftHandler.End)
			shift.POST("/image", deps.ShiftHandler.SubmitImage)
			shift.POST("/retry", deps.ShiftHandler.Retry)
			shift.POST("/cancel", deps.ShiftHandler.Cancel)
		}

		// Trip history routes.
		trips := v1.Group("/trips")
		{
			trips.GET("", deps.TripHandler.GetAll)
			trips.GET("/:id", deps.TripHandler.GetTrip)
		}

		// Stats routes.
		stats := v1.Group("/stats")
		{
			stats.GET("/leaderboard", deps.StatsHandler.Leaderboard)
			stats.GET("/drivers/:id", deps.StatsHandler.DriverDetail)
		}
	}

	return router
}
