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
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/observability"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

var (
	// ErrScoringRecordNotFound indicates a grading request for a missing record.
	ErrScoringRecordNotFound = errors.New("scoring record not found")
	// ErrRecordNotGradable indicates the record has not been submitted yet.
	ErrRecordNotGradable = errors.New("scoring record is not awaiting grading")
)

// GradingService owns the teacher side of the conduct scoring lifecycle.
type GradingService interface {
	Queue(ctx context.Context, query dto.GradingQueueQuery) ([]dto.ScoringResponse, error)
	Get(ctx context.Context, recordID uint) (dto.ScoringResponse, error)
	Grade(ctx context.Context, recordID uint, teacherID uint, payload dto.GradeRequest) (dto.ScoringResponse, error)
}

type gradingService struct {
	records   repository.ScoringRepository
	validator *validator.Validate
	notifier  Notifier
	activity  ActivityRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewGradingService constructs a GradingService instance.
func NewGradingService(records repository.ScoringRepository, validate *validator.Validate, notifier Notifier, activity ActivityRecorder, logger zerolog.Logger) GradingService {
	return &gradingService{
		records:   records,
		validator: validate,
		notifier:  notifier,
		activity:  activity,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/renluyen-go-api/internal/service/grading"),
		now:       time.Now,
	}
}

func (s *gradingService) Queue(ctx context.Context, query dto.GradingQueueQuery) ([]dto.ScoringResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	filter := repository.ScoringFilter{
		Status:       query.Status,
		Semester:     query.Semester,
		AcademicYear: query.AcademicYear,
		ClassID:      query.ClassID,
	}
	if filter.Status == nil {
		submitted := models.ScoringStatusSubmitted
		filter.Status = &submitted
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewScoringResponseSlice(records), nil
}

func (s *gradingService) Get(ctx context.Context, recordID uint) (dto.ScoringResponse, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScoringResponse{}, ErrScoringRecordNotFound
		}
		return dto.ScoringResponse{}, err
	}

	return dto.NewScoringResponse(record), nil
}

// Grade finalizes a submitted record. Re-grading an already graded record
// with identical inputs from the same teacher is a no-op.
func (s *gradingService) Grade(ctx context.Context, recordID uint, teacherID uint, payload dto.GradeRequest) (dto.ScoringResponse, error) {
	attrs := []attribute.KeyValue{
		attribute.Int64("grading.record_id", int64(recordID)),
		attribute.Int64("grading.teacher_id", int64(teacherID)),
	}
	spanCtx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(attrs...))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ScoringResponse{}, err
	}

	if *payload.TeacherScore < 0 || *payload.TeacherScore > 100 {
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.ScoringResponse{}, fmt.Errorf("teacher score %d: %w", *payload.TeacherScore, ErrScoreOutOfRange)
	}
	if payload.ClassScore != nil && (*payload.ClassScore < 0 || *payload.ClassScore > 100) {
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.ScoringResponse{}, fmt.Errorf("class score %d: %w", *payload.ClassScore, ErrScoreOutOfRange)
	}

	record, err := s.records.GetByID(spanCtx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "record_not_found")
			return dto.ScoringResponse{}, ErrScoringRecordNotFound
		}
		span.RecordError(err)
		return dto.ScoringResponse{}, err
	}

	if record.IsGraded() {
		if sameGrade(record, teacherID, payload) {
			return dto.NewScoringResponse(record), nil
		}
		span.SetStatus(codes.Error, "record_not_gradable")
		return dto.ScoringResponse{}, ErrRecordNotGradable
	}
	if record.Status != models.ScoringStatusSubmitted {
		span.SetStatus(codes.Error, "record_not_gradable")
		return dto.ScoringResponse{}, ErrRecordNotGradable
	}

	final := models.ComputeFinalScore(record.TotalSelfScore, payload.ClassScore, *payload.TeacherScore)

	record.TeacherScore = payload.TeacherScore
	record.ClassScore = payload.ClassScore
	record.FinalScore = &final
	record.Feedback = payload.Feedback
	record.Status = models.ScoringStatusGraded
	gradedAt := s.now()
	record.GradedAt = &gradedAt
	record.GradedBy = &teacherID

	if err := s.records.UpdateWithStatus(spanCtx, &record, models.ScoringStatusSubmitted); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			span.SetStatus(codes.Error, "record_not_gradable")
			return dto.ScoringResponse{}, ErrRecordNotGradable
		}
		span.RecordError(err)
		return dto.ScoringResponse{}, err
	}

	updated, err := s.records.GetByID(spanCtx, record.ID)
	if err != nil {
		return dto.ScoringResponse{}, err
	}

	band := models.GradeBand(final)
	observability.ScoringGradedTotal().WithLabelValues(band).Inc()
	span.SetAttributes(attribute.Int("grading.final_score", final), attribute.String("grading.band", band))

	s.logger.Info().
		Uint("record_id", updated.ID).
		Uint("teacher_id", teacherID).
		Int("final_score", final).
		Str("band", band).
		Msg("scoring record graded")

	if s.activity != nil {
		id := updated.ID
		_, _ = s.activity.Record(spanCtx, ActivityEntry{
			ActorID:    teacherID,
			ActorRole:  "teacher",
			Action:     "scoring.graded",
			EntityType: "scoring_record",
			EntityID:   &id,
			Metadata: map[string]interface{}{
				"student_id":    updated.StudentID,
				"teacher_score": *payload.TeacherScore,
				"final_score":   final,
				"band":          band,
			},
		})
	}

	s.notifyGraded(spanCtx, updated, teacherID, final, band)

	return dto.NewScoringResponse(updated), nil
}

func sameGrade(record models.ScoringRecord, teacherID uint, payload dto.GradeRequest) bool {
	if record.GradedBy == nil || *record.GradedBy != teacherID {
		return false
	}
	if record.TeacherScore == nil || *record.TeacherScore != *payload.TeacherScore {
		return false
	}
	if (record.ClassScore == nil) != (payload.ClassScore == nil) {
		return false
	}
	if record.ClassScore != nil && *record.ClassScore != *payload.ClassScore {
		return false
	}
	return record.Feedback == payload.Feedback
}

func (s *gradingService) notifyGraded(ctx context.Context, record models.ScoringRecord, teacherID uint, final int, band string) {
	if s.notifier == nil {
		return
	}

	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		UserID:   strconv.FormatUint(uint64(record.StudentID), 10),
		SenderID: strconv.FormatUint(uint64(teacherID), 10),
		Title:    "Kết quả rèn luyện",
		Message:  fmt.Sprintf("Phiếu chấm điểm học kỳ %s năm học %s đã được chấm: %d điểm, xếp loại %s", record.Semester, record.AcademicYear, final, band),
		Type:     models.NotificationTypeSuccess,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("record_id", record.ID).Msg("failed to dispatch grading notification")
	}
}
