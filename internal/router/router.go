package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/renluyen-go-api/internal/config"
	"github.com/noah-isme/renluyen-go-api/internal/handler"
	"github.com/noah-isme/renluyen-go-api/internal/middleware"
	"github.com/noah-isme/renluyen-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScoringHandler          *handler.ScoringHandler
	GradingHandler          *handler.GradingHandler
	TeacherDashboardHandler *handler.TeacherDashboardHandler
	StudentHandler          *handler.StudentHandler
	NotificationHandler     *handler.NotificationHandler
	UploadHandler           *handler.UploadHandler
	ActivityHandler         *handler.ActivityHandler
	JWTMiddleware           fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Student surface: own scoring record and evidence uploads.
	if deps.ScoringHandler != nil {
		student := api.Group("/student", jwtMiddleware, middleware.RequireRole("student"))
		deps.ScoringHandler.Register(student.Group("/scores"))

		if deps.UploadHandler != nil {
			deps.UploadHandler.Register(student.Group("/uploads"))
		}
	}

	// Teacher surface: grading queue, roster and dashboard.
	teacher := api.Group("/teacher", jwtMiddleware, middleware.RequireRole("teacher"))
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(teacher.Group("/grading"))
	}
	if deps.TeacherDashboardHandler != nil {
		deps.TeacherDashboardHandler.Register(teacher.Group("/dashboard"))
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(teacher.Group("/students"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(teacher.Group("/activities"))
	}

	// Notifications are shared: every authenticated user reads their own
	// stream, only teachers can publish announcements.
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
		deps.NotificationHandler.RegisterSender(teacher.Group("/notifications"))
	}
}
