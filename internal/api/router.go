package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/api/handler"
	"github.com/timmy/reelforge/internal/api/middleware"
	"github.com/timmy/reelforge/internal/config"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/service"
	"github.com/timmy/reelforge/internal/storage"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	DB         handler.Pinger
	Jobs       handler.JobReader
	Channels   handler.ChannelReader
	Snapshots  *service.SnapshotService
	Progress   *service.ProgressService
	Dispatcher *service.Dispatcher
	Timeline   *service.Timeline
	Storage    storage.ObjectBrowser // nil disables the storage browser
	Polling    config.PollingConfig
	Logger     *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, server config.ServerConfig) *gin.Engine {
	switch server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(server.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	pipelineHandler := handler.NewPipelineHandler(deps.Snapshots)
	jobHandler := handler.NewJobHandler(deps.Jobs, deps.Progress)
	automationHandler := handler.NewAutomationHandler(deps.Dispatcher, deps.Polling)
	channelHandler := handler.NewChannelHandler(deps.Channels, deps.Timeline)
	storageHandler := handler.NewStorageHandler(deps.Storage)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/stages", handler.ListStages)

		// Polled read model
		polled := v1.Group("", middleware.NoStore())
		{
			polled.GET("/pipeline/snapshot", pipelineHandler.Snapshot)
			polled.GET("/pipeline/overview", pipelineHandler.Overview)
			polled.GET("/automation/status", automationHandler.Status)
			polled.GET("/jobs", jobHandler.ListJobs)
			polled.GET("/jobs/:id", jobHandler.GetJob)
		}

		// Worker write path
		v1.PATCH("/jobs/:id", jobHandler.UpdateJob)

		// Triggers
		v1.POST("/automation/daily", automationHandler.TriggerDaily)
		v1.POST("/automation/uploads/check", automationHandler.CheckUploads)

		// Channels
		v1.GET("/channels", channelHandler.ListChannels)
		v1.GET("/channels/:id", channelHandler.GetChannel)
		v1.GET("/channels/:id/next-slot", channelHandler.NextSlot)

		// Storage browser
		v1.GET("/storage/objects", storageHandler.ListObjects)
		v1.GET("/storage/objects/*key", storageHandler.GetObject)
		v1.HEAD("/storage/objects/*key", storageHandler.HeadObject)
	}

	return r
}
