package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

// TeacherDashboardService produces aggregated grading metrics.
type TeacherDashboardService interface {
	GetDashboard(ctx context.Context, query dto.GradingQueueQuery) (dto.TeacherDashboardResponse, error)
}

type teacherDashboardService struct {
	records  repository.ScoringRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewTeacherDashboardService builds the dashboard aggregator.
func NewTeacherDashboardService(records repository.ScoringRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) TeacherDashboardService {
	return &teacherDashboardService{
		records:  records,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "teacher_dashboard_service").Logger(),
	}
}

func (s *teacherDashboardService) GetDashboard(ctx context.Context, query dto.GradingQueueQuery) (dto.TeacherDashboardResponse, error) {
	cacheKey := dashboardCacheKey(query)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.TeacherDashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("cache_key", cacheKey).Msg("dashboard cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	records, err := s.records.List(ctx, repository.ScoringFilter{
		Semester:     query.Semester,
		AcademicYear: query.AcademicYear,
		ClassID:      query.ClassID,
	})
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}

	response := buildTeacherDashboard(records)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

func dashboardCacheKey(query dto.GradingQueueQuery) string {
	semester := ""
	if query.Semester != nil {
		semester = *query.Semester
	}
	year := ""
	if query.AcademicYear != nil {
		year = *query.AcademicYear
	}
	class := ""
	if query.ClassID != nil {
		class = *query.ClassID
	}
	return fmt.Sprintf("dashboard:teacher:%s:%s:%s", semester, year, class)
}

func buildTeacherDashboard(records []models.ScoringRecord) dto.TeacherDashboardResponse {
	summary := dto.GradingSummary{}
	bands := map[string]int{}
	pending := make([]dto.PendingRecord, 0)

	var finalTotal int
	for _, record := range records {
		summary.TotalRecords++

		switch record.Status {
		case models.ScoringStatusDraft:
			summary.Draft++
		case models.ScoringStatusSubmitted:
			summary.Submitted++
			pending = append(pending, dto.PendingRecord{
				RecordID:       record.ID,
				StudentCode:    record.Student.StudentCode,
				StudentName:    record.Student.FullName,
				ClassID:        record.Student.ClassID,
				Semester:       record.Semester,
				AcademicYear:   record.AcademicYear,
				TotalSelfScore: record.TotalSelfScore,
				SubmittedAt:    record.SubmittedAt,
			})
		case models.ScoringStatusGraded:
			summary.Graded++
			if record.FinalScore != nil {
				finalTotal += *record.FinalScore
				bands[models.GradeBand(*record.FinalScore)]++
			}
		}
	}

	if summary.Graded > 0 {
		summary.AverageFinalScore = float64(finalTotal) / float64(summary.Graded)
	}
	if summary.TotalRecords > 0 {
		summary.CompletionRate = (float64(summary.Graded) / float64(summary.TotalRecords)) * 100
	}

	return dto.TeacherDashboardResponse{
		Summary:          summary,
		BandDistribution: bands,
		PendingQueue:     pending,
	}
}
