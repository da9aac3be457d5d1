package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// NewRouter mounts every HTTP route on a fresh gin engine.
func NewRouter(c *Container) *gin.Engine {
	cfg := c.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if c.Metrics != nil {
		r.Use(middleware.Metrics(c.Metrics))
	}

	var db handler.Pinger
	if c.DB != nil {
		db = c.DB
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	timetableHandler := handler.NewTimetableHandler(c.Generator, c.Query)
	slotHandler := handler.NewScheduleSlotHandler(c.Slots)
	planners := middleware.RequireRoles(models.RoleAdmin, models.RoleHOD)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(c.Tokens))

	timetables := api.Group("/timetables")
	timetables.POST("/generate", planners, timetableHandler.Generate)
	timetables.GET("/sections", timetableHandler.SectionTimetable)
	timetables.GET("/coverage", timetableHandler.Coverage)
	timetables.GET("/current-slot", timetableHandler.CurrentSlot)

	teachers := api.Group("/teachers")
	teachers.GET("/:id/schedule", timetableHandler.TeacherSchedule)
	teachers.GET("/:id/schedule/current", timetableHandler.TeacherCurrentSchedule)

	slots := api.Group("/schedule-slots", planners)
	slots.POST("", slotHandler.Create)
	slots.PUT("/:id", slotHandler.Update)
	slots.DELETE("/:id", slotHandler.Deactivate)

	return r
}
