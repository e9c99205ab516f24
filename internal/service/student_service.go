package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

// ErrStudentCodeTaken indicates the student code already exists on the roster.
var ErrStudentCodeTaken = errors.New("student code already registered")

// studentSortOrders maps the accepted sort keys to ORDER BY clauses. The
// request validator rejects anything outside this set, so raw input never
// reaches the query.
var studentSortOrders = map[string]string{
	"student_code": "student_code ASC",
	"full_name":    "full_name ASC",
	"class_id":     "class_id ASC, student_code ASC",
	"created_at":   "created_at DESC",
}

// StudentService orchestrates roster management use cases.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error)
	Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error)
	Archive(ctx context.Context, id uint, actor ActivityActor) error
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewStudentService constructs the student roster service.
func NewStudentService(repo repository.StudentRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentListResponse{}, err
	}

	filter := repository.StudentFilter{
		Search:   strings.TrimSpace(req.Search),
		ClassID:  strings.TrimSpace(req.ClassID),
		Status:   strings.TrimSpace(req.Status),
		Sort:     studentSortOrders[strings.TrimSpace(req.Sort)],
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.StudentListResponse{Items: dto.NewStudentResponseSlice(students), Pagination: pagination}, nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(payload.StudentCode))
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return dto.StudentResponse{}, ErrStudentCodeTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		StudentCode: code,
		FullName:    strings.TrimSpace(payload.FullName),
		Email:       strings.ToLower(strings.TrimSpace(payload.Email)),
		ClassID:     strings.TrimSpace(payload.ClassID),
		Phone:       strings.TrimSpace(payload.Phone),
		DateOfBirth: payload.DateOfBirth,
		Status:      models.StudentStatusActive,
	}

	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	if s.activity != nil {
		id := student.ID
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "student.created",
			EntityType: "student",
			EntityID:   &id,
			Metadata: map[string]interface{}{
				"student_code": student.StudentCode,
				"class_id":     student.ClassID,
			},
		})
	}

	s.logger.Info().Str("student_code", student.StudentCode).Msg("student registered")

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	if payload.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*payload.FullName)
		changedFields = append(changedFields, "full_name")
	}
	if payload.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*payload.Email))
		changedFields = append(changedFields, "email")
	}
	if payload.ClassID != nil {
		updates["class_id"] = strings.TrimSpace(*payload.ClassID)
		changedFields = append(changedFields, "class_id")
	}
	if payload.Phone != nil {
		updates["phone"] = strings.TrimSpace(*payload.Phone)
		changedFields = append(changedFields, "phone")
	}
	if payload.DateOfBirth != nil {
		updates["date_of_birth"] = *payload.DateOfBirth
		changedFields = append(changedFields, "date_of_birth")
	}
	if payload.Status != nil {
		updates["status"] = strings.ToLower(strings.TrimSpace(*payload.Status))
		changedFields = append(changedFields, "status")
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	student, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "student.updated",
			EntityType: "student",
			EntityID:   &id,
			Metadata: map[string]interface{}{
				"student_id": id,
				"fields":     changedFields,
			},
		})
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Archive(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.repo.Archive(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "student.archived",
			EntityType: "student",
			EntityID:   &id,
			Metadata: map[string]interface{}{
				"student_id": id,
				"status":     models.StudentStatusArchived,
			},
		})
	}

	return nil
}
