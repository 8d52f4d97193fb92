package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/scolaris/emploi-api/api/swagger"
	"github.com/scolaris/emploi-api/internal/handler"
	"github.com/scolaris/emploi-api/internal/middleware"
	"github.com/scolaris/emploi-api/internal/models"
	"github.com/scolaris/emploi-api/internal/repository"
	"github.com/scolaris/emploi-api/internal/service"
	"github.com/scolaris/emploi-api/pkg/cache"
	"github.com/scolaris/emploi-api/pkg/config"
	"github.com/scolaris/emploi-api/pkg/database"
	"github.com/scolaris/emploi-api/pkg/logger"
	corsmiddleware "github.com/scolaris/emploi-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scolaris/emploi-api/pkg/middleware/requestid"
)

// @title Emploi API
// @version 1.0.0
// @description Timetable generation and publication service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Views fall back to uncached reads when Redis is unavailable.
		logr.Sugar().Warnw("redis unavailable, view cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	classSubjectRepo := repository.NewClassSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	allocatorSvc, err := service.NewAllocatorService(classRepo, classSubjectRepo, teacherRepo, roomRepo, templateRepo, slotRepo, cfg.Timetable, validate, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build allocator", "error", err)
	}
	templateSvc, err := service.NewTemplateService(allocatorSvc, templateRepo, slotRepo, teacherRepo, db, cacheRepo, metricsSvc, cfg.Timetable, validate, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build template service", "error", err)
	}
	querySvc := service.NewTimetableQueryService(templateRepo, slotRepo, cacheRepo, metricsSvc, cfg.Views, logr)
	batchSvc := service.NewBatchService(classRepo, templateSvc, validate, logr)
	exportSvc, err := service.NewExportService(classRepo, templateRepo, slotRepo, cfg.Timetable, cfg.Exports, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build export service", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batchSvc.Start(ctx)
	defer batchSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(templateSvc, batchSvc)
	viewHandler := handler.NewViewHandler(querySvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)
	selfOrAdmin := middleware.RBAC(string(models.RoleAdmin), "SELF")

	timetables := authed.Group("/timetables")
	{
		timetables.POST("/generate", admin, timetableHandler.Generate)
		timetables.POST("/generate-all", admin, timetableHandler.GenerateAll)
		timetables.GET("", staff, timetableHandler.List)
		timetables.GET("/:id/slots", staff, timetableHandler.GetSlots)
		timetables.POST("/:id/publish", admin, timetableHandler.Publish)
		timetables.DELETE("/:id", admin, timetableHandler.Delete)
	}

	slots := authed.Group("/slots")
	{
		slots.PATCH("/:id", admin, timetableHandler.UpdateSlot)
		slots.POST("/:id/lock", admin, timetableHandler.LockSlot)
		slots.POST("/:id/unlock", admin, timetableHandler.UnlockSlot)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("/:id/timetable/active", staff, viewHandler.ActiveForClass)
		classes.GET("/:id/timetable/export", staff, exportHandler.Export)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("/:id/slots/day", selfOrAdmin, viewHandler.TeacherDay)
		teachers.GET("/:id/slots/week", selfOrAdmin, viewHandler.TeacherWeek)
		teachers.GET("/:id/slots/year", selfOrAdmin, viewHandler.TeacherYear)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
