package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/service"
	"github.com/noah-isme/renluyen-go-api/internal/utils"
)

// GradingHandler manages the teacher-facing grading endpoints.
type GradingHandler struct {
	service service.GradingService
	exports service.ExportService
	logger  zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(service service.GradingService, exports service.ExportService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		exports: exports,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("", h.queue)
	router.Get("/:id", h.get)
	router.Post("/:id/grade", h.grade)
	router.Get("/:id/export", h.export)
}

func (h *GradingHandler) queue(c *fiber.Ctx) error {
	var query dto.GradingQueueQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	records, err := h.service.Queue(c.UserContext(), query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading queue retrieved", records)
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	record, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring record retrieved", record)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	teacherID := userIDFromContext(c)
	if teacherID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Grade(c.UserContext(), id, teacherID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring record graded", record)
}

func (h *GradingHandler) export(c *fiber.Ctx) error {
	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	payload, filename, err := h.exports.ScoringCSV(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(payload)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrScoringRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "scoring record not found")
	case errors.Is(err, service.ErrScoreOutOfRange):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrRecordNotGradable):
		return utils.SendError(c, fiber.StatusConflict, "scoring record is not awaiting grading")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func parseRecordID(c *fiber.Ctx) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
