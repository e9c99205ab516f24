package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

func dashboardTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A fresh in-memory database per connection; keep the pool at one.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.ScoringRecord{}, &models.SectionScore{}))
	return db
}

func seedDashboardStudent(t *testing.T, db *gorm.DB, code, name, class string) models.Student {
	t.Helper()

	student := models.Student{StudentCode: code, FullName: name, ClassID: class, Email: code + "@example.edu.vn", Status: models.StudentStatusActive}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func TestTeacherDashboardAggregationAndCaching(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	db := dashboardTestDB(t)

	first := seedDashboardStudent(t, db, "SV001", "Nguyễn Văn An", "CNTT01")
	second := seedDashboardStudent(t, db, "SV002", "Trần Thị Bình", "CNTT01")
	third := seedDashboardStudent(t, db, "SV003", "Lê Văn Cường", "CNTT02")

	draft := models.NewScoringRecord(first.ID, "1", "2025-2026")
	require.NoError(t, db.Create(&draft).Error)

	submitted := models.NewScoringRecord(second.ID, "1", "2025-2026")
	for i := range submitted.Sections {
		submitted.Sections[i].SelfScore = []int{18, 23, 17, 22, 8}[i]
		submitted.Sections[i].Touched = true
	}
	submitted.RecomputeTotal()
	submitted.Status = models.ScoringStatusSubmitted
	now := time.Now().UTC()
	submitted.SubmittedAt = &now
	require.NoError(t, db.Create(&submitted).Error)

	graded := models.NewScoringRecord(third.ID, "1", "2025-2026")
	graded.Status = models.ScoringStatusGraded
	final := 87
	graded.FinalScore = &final
	graded.GradedAt = &now
	require.NoError(t, db.Create(&graded).Error)

	svc := NewTeacherDashboardService(repository.NewScoringRepository(db), redisClient, time.Minute, testLogger())

	ctx := context.Background()
	result, err := svc.GetDashboard(ctx, dto.GradingQueueQuery{})
	require.NoError(t, err)
	require.Equal(t, 3, result.Summary.TotalRecords)
	require.Equal(t, 1, result.Summary.Draft)
	require.Equal(t, 1, result.Summary.Submitted)
	require.Equal(t, 1, result.Summary.Graded)
	require.InDelta(t, 87.0, result.Summary.AverageFinalScore, 0.01)
	require.InDelta(t, 33.33, result.Summary.CompletionRate, 0.5)
	require.Equal(t, map[string]int{models.GradeGood: 1}, result.BandDistribution)

	require.Len(t, result.PendingQueue, 1)
	require.Equal(t, "SV002", result.PendingQueue[0].StudentCode)
	require.Equal(t, 88, result.PendingQueue[0].TotalSelfScore)

	// A later write must not leak through the cached response.
	require.NoError(t, db.Model(&draft).Update("status", models.ScoringStatusSubmitted).Error)

	again, err := svc.GetDashboard(ctx, dto.GradingQueueQuery{})
	require.NoError(t, err)
	require.Equal(t, result.Summary, again.Summary)
	require.Equal(t, result.BandDistribution, again.BandDistribution)
	require.Len(t, again.PendingQueue, 1)
}

func TestTeacherDashboardCacheHit(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	db := dashboardTestDB(t)

	svc := NewTeacherDashboardService(repository.NewScoringRepository(db), redisClient, time.Minute, testLogger())

	ctx := context.Background()
	cached := dto.TeacherDashboardResponse{
		Summary:          dto.GradingSummary{TotalRecords: 9},
		BandDistribution: map[string]int{},
		PendingQueue:     []dto.PendingRecord{},
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, redisClient.Set(ctx, "dashboard:teacher:::", payload, time.Minute).Err())

	response, err := svc.GetDashboard(ctx, dto.GradingQueueQuery{})
	require.NoError(t, err)
	require.Equal(t, cached, response)
}

func TestTeacherDashboardFiltersByClass(t *testing.T) {
	db := dashboardTestDB(t)

	student := seedDashboardStudent(t, db, "SV010", "Phạm Thị Dung", "CNTT05")
	record := models.NewScoringRecord(student.ID, "2", "2025-2026")
	record.Status = models.ScoringStatusSubmitted
	now := time.Now().UTC()
	record.SubmittedAt = &now
	require.NoError(t, db.Create(&record).Error)

	svc := NewTeacherDashboardService(repository.NewScoringRepository(db), nil, time.Minute, testLogger())

	class := "CNTT05"
	result, err := svc.GetDashboard(context.Background(), dto.GradingQueueQuery{ClassID: &class})
	require.NoError(t, err)
	require.Equal(t, 1, result.Summary.TotalRecords)

	other := "CNTT99"
	empty, err := svc.GetDashboard(context.Background(), dto.GradingQueueQuery{ClassID: &other})
	require.NoError(t, err)
	require.Equal(t, 0, empty.Summary.TotalRecords)
}
