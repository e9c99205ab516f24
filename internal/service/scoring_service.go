package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/observability"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

var (
	// ErrStudentNotFound indicates the student does not exist on the roster.
	ErrStudentNotFound = errors.New("student not found")
	// ErrRecordNotEditable indicates the record left draft status.
	ErrRecordNotEditable = errors.New("scoring record is no longer editable")
	// ErrUnknownSection indicates a rubric section number outside 1..5.
	ErrUnknownSection = errors.New("unknown rubric section")
	// ErrScoreOutOfRange indicates a score outside its declared bounds.
	ErrScoreOutOfRange = errors.New("score outside allowed range")
	// ErrSectionUnscored indicates submission with untouched sections.
	ErrSectionUnscored = errors.New("every section must be scored before submission")
)

// ScoringService owns the student side of the conduct scoring lifecycle.
type ScoringService interface {
	GetOrCreate(ctx context.Context, studentID uint, query dto.ScoringPeriodQuery) (dto.ScoringResponse, error)
	UpdateSection(ctx context.Context, studentID uint, sectionNumber int, payload dto.SectionUpdateRequest) (dto.ScoringResponse, error)
	SaveDraft(ctx context.Context, studentID uint, payload dto.DraftSaveRequest) (dto.ScoringResponse, error)
	Submit(ctx context.Context, studentID uint, payload dto.SubmitRequest) (dto.ScoringResponse, error)
	History(ctx context.Context, studentID uint) ([]dto.ScoringResponse, error)
}

type scoringService struct {
	records   repository.ScoringRepository
	students  repository.StudentRepository
	validator *validator.Validate
	notifier  Notifier
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScoringService constructs a ScoringService instance.
func NewScoringService(records repository.ScoringRepository, students repository.StudentRepository, validate *validator.Validate, notifier Notifier, activity ActivityRecorder, logger zerolog.Logger) ScoringService {
	return &scoringService{
		records:   records,
		students:  students,
		validator: validate,
		notifier:  notifier,
		activity:  activity,
		logger:    logger.With().Str("component", "scoring_service").Logger(),
		now:       time.Now,
	}
}

// GetOrCreate loads the record for the requested period, creating a zeroed
// draft on first access.
func (s *scoringService) GetOrCreate(ctx context.Context, studentID uint, query dto.ScoringPeriodQuery) (dto.ScoringResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ScoringResponse{}, err
	}

	record, err := s.loadOrCreate(ctx, studentID, query.Semester, query.AcademicYear)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	return dto.NewScoringResponse(record), nil
}

func (s *scoringService) UpdateSection(ctx context.Context, studentID uint, sectionNumber int, payload dto.SectionUpdateRequest) (dto.ScoringResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoringResponse{}, err
	}

	record, err := s.loadOrCreate(ctx, studentID, payload.Semester, payload.AcademicYear)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	if !record.IsEditable() {
		return dto.ScoringResponse{}, ErrRecordNotEditable
	}

	section := record.Section(sectionNumber)
	if section == nil {
		return dto.ScoringResponse{}, ErrUnknownSection
	}

	if err := applySectionUpdate(section, payload); err != nil {
		return dto.ScoringResponse{}, err
	}
	record.RecomputeTotal()

	if err := s.records.UpdateWithStatus(ctx, &record, models.ScoringStatusDraft); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return dto.ScoringResponse{}, ErrRecordNotEditable
		}
		return dto.ScoringResponse{}, err
	}

	updated, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	return dto.NewScoringResponse(updated), nil
}

func (s *scoringService) SaveDraft(ctx context.Context, studentID uint, payload dto.DraftSaveRequest) (dto.ScoringResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoringResponse{}, err
	}

	record, err := s.loadOrCreate(ctx, studentID, payload.Semester, payload.AcademicYear)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	if !record.IsEditable() {
		return dto.ScoringResponse{}, ErrRecordNotEditable
	}

	for _, input := range payload.Sections {
		section := record.Section(input.SectionNumber)
		if section == nil {
			return dto.ScoringResponse{}, ErrUnknownSection
		}

		max, _ := models.SectionMaxScore(input.SectionNumber)
		if input.SelfScore < 0 || input.SelfScore > max {
			return dto.ScoringResponse{}, fmt.Errorf("section %d: %w", input.SectionNumber, ErrScoreOutOfRange)
		}

		section.SelfScore = input.SelfScore
		section.Evidence = input.Evidence
		section.Touched = true
		if err := section.SetEvidenceFiles(input.Files); err != nil {
			return dto.ScoringResponse{}, err
		}
	}
	record.RecomputeTotal()

	if err := s.records.UpdateWithStatus(ctx, &record, models.ScoringStatusDraft); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return dto.ScoringResponse{}, ErrRecordNotEditable
		}
		return dto.ScoringResponse{}, err
	}

	updated, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	s.logger.Info().Uint("record_id", record.ID).Int("total", updated.TotalSelfScore).Msg("draft saved")

	return dto.NewScoringResponse(updated), nil
}

func (s *scoringService) Submit(ctx context.Context, studentID uint, payload dto.SubmitRequest) (dto.ScoringResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/renluyen-go-api/internal/service/scoring")
	ctx, span := tracer.Start(ctx, "scoring.submit")
	span.SetAttributes(attribute.Int64("scoring.student_id", int64(studentID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ScoringResponse{}, err
	}

	record, err := s.loadOrCreate(ctx, studentID, payload.Semester, payload.AcademicYear)
	if err != nil {
		span.RecordError(err)
		return dto.ScoringResponse{}, err
	}

	if !record.IsEditable() {
		span.SetStatus(codes.Error, "record_not_editable")
		return dto.ScoringResponse{}, ErrRecordNotEditable
	}

	for number := 1; number <= models.SectionCount; number++ {
		section := record.Section(number)
		if section == nil || !section.Touched {
			span.SetStatus(codes.Error, "section_unscored")
			return dto.ScoringResponse{}, fmt.Errorf("section %d: %w", number, ErrSectionUnscored)
		}
	}

	record.RecomputeTotal()
	record.Status = models.ScoringStatusSubmitted
	submittedAt := s.now()
	record.SubmittedAt = &submittedAt

	if err := s.records.UpdateWithStatus(ctx, &record, models.ScoringStatusDraft); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			span.SetStatus(codes.Error, "record_not_editable")
			return dto.ScoringResponse{}, ErrRecordNotEditable
		}
		span.RecordError(err)
		return dto.ScoringResponse{}, err
	}

	updated, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	observability.ScoringSubmissionsTotal().Inc()
	span.SetAttributes(attribute.Int("scoring.total_self_score", updated.TotalSelfScore))

	if s.activity != nil {
		recordID := updated.ID
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    studentID,
			ActorRole:  "student",
			Action:     "scoring.submitted",
			EntityType: "scoring_record",
			EntityID:   &recordID,
			Metadata: map[string]interface{}{
				"semester":         updated.Semester,
				"academic_year":    updated.AcademicYear,
				"total_self_score": updated.TotalSelfScore,
			},
		})
	}

	s.notifySubmitted(ctx, updated)

	return dto.NewScoringResponse(updated), nil
}

func (s *scoringService) History(ctx context.Context, studentID uint) ([]dto.ScoringResponse, error) {
	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewScoringResponseSlice(records), nil
}

func (s *scoringService) loadOrCreate(ctx context.Context, studentID uint, semester, academicYear string) (models.ScoringRecord, error) {
	record, err := s.records.GetByPeriod(ctx, studentID, semester, academicYear)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ScoringRecord{}, err
	}

	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ScoringRecord{}, ErrStudentNotFound
		}
		return models.ScoringRecord{}, err
	}

	created := models.NewScoringRecord(studentID, semester, academicYear)
	if err := s.records.Create(ctx, &created); err != nil {
		return models.ScoringRecord{}, err
	}

	s.logger.Info().Uint("student_id", studentID).Str("semester", semester).Str("academic_year", academicYear).Msg("scoring record created")

	return s.records.GetByPeriod(ctx, studentID, semester, academicYear)
}

func applySectionUpdate(section *models.SectionScore, payload dto.SectionUpdateRequest) error {
	if payload.SelfScore != nil {
		max, ok := models.SectionMaxScore(section.SectionNumber)
		if !ok {
			return ErrUnknownSection
		}
		if *payload.SelfScore < 0 || *payload.SelfScore > max {
			return fmt.Errorf("section %d: %w", section.SectionNumber, ErrScoreOutOfRange)
		}
		section.SelfScore = *payload.SelfScore
		section.Touched = true
	}

	if payload.Evidence != nil {
		section.Evidence = *payload.Evidence
	}

	if payload.Files != nil {
		if err := section.SetEvidenceFiles(payload.Files); err != nil {
			return err
		}
	}

	return nil
}

func (s *scoringService) notifySubmitted(ctx context.Context, record models.ScoringRecord) {
	if s.notifier == nil {
		return
	}

	name := record.Student.FullName
	if name == "" {
		name = strconv.FormatUint(uint64(record.StudentID), 10)
	}

	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		TargetRole: "teacher",
		SenderID:   strconv.FormatUint(uint64(record.StudentID), 10),
		Title:      "Phiếu chấm điểm mới",
		Message:    fmt.Sprintf("Sinh viên %s đã gửi phiếu chấm điểm học kỳ %s năm học %s", name, record.Semester, record.AcademicYear),
		Type:       models.NotificationTypeInfo,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("record_id", record.ID).Msg("failed to dispatch submission notification")
	}
}
