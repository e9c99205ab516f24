package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/renluyen-go-api/internal/config"
	"github.com/noah-isme/renluyen-go-api/internal/database"
	"github.com/noah-isme/renluyen-go-api/internal/handler"
	"github.com/noah-isme/renluyen-go-api/internal/middleware"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
	"github.com/noah-isme/renluyen-go-api/internal/router"
	"github.com/noah-isme/renluyen-go-api/internal/service"
	cloud "github.com/noah-isme/renluyen-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.ScoringRecord{},
		&models.SectionScore{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.UploadRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	scoringRepo := repository.NewScoringRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	scoringService := service.NewScoringService(scoringRepo, studentRepo, validate, notificationService, activityService, logger)
	gradingService := service.NewGradingService(scoringRepo, validate, notificationService, activityService, logger)
	uploadService := service.NewUploadService(uploader, uploadRepo, cfg.UploadMaxMB, logger)
	exportService := service.NewExportService(scoringRepo, studentRepo, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityService, logger)
	dashboardService := service.NewTeacherDashboardService(scoringRepo, redisClient, cfg.DashboardCacheTTL, logger)

	scoringHandler := handler.NewScoringHandler(scoringService, exportService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, exportService, logger)
	dashboardHandler := handler.NewTeacherDashboardHandler(dashboardService, logger)
	studentHandler := handler.NewStudentHandler(studentService, exportService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ScoringHandler:          scoringHandler,
		GradingHandler:          gradingHandler,
		TeacherDashboardHandler: dashboardHandler,
		StudentHandler:          studentHandler,
		NotificationHandler:     notificationHandler,
		UploadHandler:           uploadHandler,
		ActivityHandler:         activityHandler,
		JWTMiddleware:           middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
