package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/service"
	"github.com/noah-isme/renluyen-go-api/internal/utils"
)

// TeacherDashboardHandler serves the aggregated grading overview.
type TeacherDashboardHandler struct {
	service service.TeacherDashboardService
	logger  zerolog.Logger
}

// NewTeacherDashboardHandler builds a dashboard handler instance.
func NewTeacherDashboardHandler(service service.TeacherDashboardService, logger zerolog.Logger) *TeacherDashboardHandler {
	return &TeacherDashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "teacher_dashboard_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *TeacherDashboardHandler) Register(router fiber.Router) {
	router.Get("", h.dashboard)
}

func (h *TeacherDashboardHandler) dashboard(c *fiber.Ctx) error {
	var query dto.GradingQueueQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	dashboard, err := h.service.GetDashboard(c.UserContext(), query)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "dashboard retrieved", dashboard)
}
