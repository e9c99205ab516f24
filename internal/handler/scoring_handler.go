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

// ScoringHandler manages the student-facing conduct scoring endpoints.
type ScoringHandler struct {
	service service.ScoringService
	exports service.ExportService
	logger  zerolog.Logger
}

// NewScoringHandler builds a scoring handler instance.
func NewScoringHandler(service service.ScoringService, exports service.ExportService, logger zerolog.Logger) *ScoringHandler {
	return &ScoringHandler{
		service: service,
		exports: exports,
		logger:  logger.With().Str("component", "scoring_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ScoringHandler) Register(router fiber.Router) {
	router.Get("", h.get)
	router.Get("/history", h.history)
	router.Get("/export", h.export)
	router.Put("/sections/:number", h.updateSection)
	router.Put("/draft", h.saveDraft)
	router.Post("/submit", h.submit)
}

func (h *ScoringHandler) get(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var query dto.ScoringPeriodQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	record, err := h.service.GetOrCreate(c.UserContext(), studentID, query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring record retrieved", record)
}

func (h *ScoringHandler) history(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	records, err := h.service.History(c.UserContext(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring history retrieved", records)
}

func (h *ScoringHandler) export(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var query dto.ScoringPeriodQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	payload, filename, err := h.exports.StudentScoringCSV(c.UserContext(), studentID, query.Semester, query.AcademicYear)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(payload)
}

func (h *ScoringHandler) updateSection(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	number, err := strconv.Atoi(c.Params("number"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid section number")
	}

	var payload dto.SectionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.UpdateSection(c.UserContext(), studentID, number, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "section updated", record)
}

func (h *ScoringHandler) saveDraft(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.DraftSaveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.SaveDraft(c.UserContext(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "draft saved", record)
}

func (h *ScoringHandler) submit(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.Submit(c.UserContext(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring record submitted", record)
}

func (h *ScoringHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrScoringRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "scoring record not found")
	case errors.Is(err, service.ErrUnknownSection):
		return utils.SendError(c, fiber.StatusNotFound, "unknown rubric section")
	case errors.Is(err, service.ErrScoreOutOfRange):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrSectionUnscored):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRecordNotEditable):
		return utils.SendError(c, fiber.StatusConflict, "scoring record is no longer editable")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
