package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
	"github.com/noah-isme/renluyen-go-api/internal/service"
	"github.com/noah-isme/renluyen-go-api/internal/utils"
)

// StudentHandler manages the roster management endpoints.
type StudentHandler struct {
	service service.StudentService
	exports service.ExportService
	logger  zerolog.Logger
}

// NewStudentHandler builds a student handler instance.
func NewStudentHandler(service service.StudentService, exports service.ExportService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		exports: exports,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/export", h.export)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.archive)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	var req dto.StudentListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	students, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) export(c *fiber.Ctx) error {
	filter := repository.StudentFilter{
		ClassID: c.Query("class_id"),
		Status:  c.Query("status"),
	}

	payload, filename, err := h.exports.RosterCSV(c.UserContext(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(payload)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	student, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.StudentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.Create(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student registered", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var payload dto.StudentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.Update(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) archive(c *fiber.Ctx) error {
	id, err := parseRecordID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	if err := h.service.Archive(c.UserContext(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student archived", nil)
}

func (h *StudentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrStudentCodeTaken):
		return utils.SendError(c, fiber.StatusConflict, "student code already registered")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
