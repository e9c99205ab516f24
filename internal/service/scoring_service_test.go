package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/dto"
	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeScoringRepo struct {
	records     map[uint]models.ScoringRecord
	nextID      uint
	createCalls int
	updateCalls int
}

func newFakeScoringRepo() *fakeScoringRepo {
	return &fakeScoringRepo{records: make(map[uint]models.ScoringRecord), nextID: 1}
}

func (f *fakeScoringRepo) GetByID(ctx context.Context, id uint) (models.ScoringRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return models.ScoringRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeScoringRepo) GetByPeriod(ctx context.Context, studentID uint, semester, academicYear string) (models.ScoringRecord, error) {
	for _, record := range f.records {
		if record.StudentID == studentID && record.Semester == semester && record.AcademicYear == academicYear {
			return record, nil
		}
	}
	return models.ScoringRecord{}, gorm.ErrRecordNotFound
}

func (f *fakeScoringRepo) List(ctx context.Context, filter repository.ScoringFilter) ([]models.ScoringRecord, error) {
	var out []models.ScoringRecord
	for _, record := range f.records {
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.Semester != nil && record.Semester != *filter.Semester {
			continue
		}
		if filter.AcademicYear != nil && record.AcademicYear != *filter.AcademicYear {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeScoringRepo) ListByStudent(ctx context.Context, studentID uint) ([]models.ScoringRecord, error) {
	var out []models.ScoringRecord
	for _, record := range f.records {
		if record.StudentID == studentID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeScoringRepo) Create(ctx context.Context, record *models.ScoringRecord) error {
	f.createCalls++
	record.ID = f.nextID
	f.nextID++
	f.records[record.ID] = *record
	return nil
}

func (f *fakeScoringRepo) UpdateWithStatus(ctx context.Context, record *models.ScoringRecord, expectedStatus string) error {
	stored, ok := f.records[record.ID]
	if !ok || stored.Status != expectedStatus {
		return repository.ErrStaleRecord
	}
	f.updateCalls++
	f.records[record.ID] = *record
	return nil
}

type fakeStudentRepo struct {
	students map[uint]models.Student
}

func (f *fakeStudentRepo) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, int64, error) {
	return nil, 0, nil
}

func (f *fakeStudentRepo) GetByID(ctx context.Context, id uint) (models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return student, nil
}

func (f *fakeStudentRepo) GetByCode(ctx context.Context, code string) (models.Student, error) {
	return models.Student{}, gorm.ErrRecordNotFound
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error { return nil }

func (f *fakeStudentRepo) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Student, error) {
	return models.Student{}, nil
}

func (f *fakeStudentRepo) Archive(ctx context.Context, id uint) error { return nil }

type capturingNotifier struct {
	published []dto.NotificationCreateRequest
}

func (c *capturingNotifier) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	c.published = append(c.published, payload)
	return dto.NotificationResponse{}, nil
}

type capturingActivity struct {
	entries []ActivityEntry
}

func (c *capturingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	c.entries = append(c.entries, entry)
	return dto.ActivityResponse{}, nil
}

func newScoringFixture() (*fakeScoringRepo, *fakeStudentRepo, *capturingNotifier, *capturingActivity, ScoringService) {
	records := newFakeScoringRepo()
	student := models.Student{FullName: "Nguyễn Văn An", StudentCode: "SV007", ClassID: "CNTT01"}
	student.ID = 7
	students := &fakeStudentRepo{students: map[uint]models.Student{7: student}}
	notifier := &capturingNotifier{}
	activity := &capturingActivity{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewScoringService(records, students, validate, notifier, activity, testLogger())
	return records, students, notifier, activity, svc
}

func seedDraft(repo *fakeScoringRepo, studentID uint) models.ScoringRecord {
	record := models.NewScoringRecord(studentID, "1", "2025-2026")
	record.ID = repo.nextID
	repo.nextID++
	for i := range record.Sections {
		record.Sections[i].ID = uint(i + 1)
		record.Sections[i].ScoringRecordID = record.ID
	}
	repo.records[record.ID] = record
	return record
}

func TestScoringServiceCreatesZeroedDraft(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()

	result, err := svc.GetOrCreate(context.Background(), 7, dto.ScoringPeriodQuery{Semester: "1", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	require.Equal(t, models.ScoringStatusDraft, result.Status)
	require.Len(t, result.Sections, models.SectionCount)
	require.Equal(t, 0, result.TotalSelfScore)
	require.Nil(t, result.FinalScore)
	require.Equal(t, 1, records.createCalls)

	for i, section := range result.Sections {
		require.Equal(t, i+1, section.SectionNumber)
		require.Equal(t, 0, section.SelfScore)
		require.False(t, section.Touched)
		require.NotEmpty(t, section.Title)
	}

	// A second read must reuse the stored record.
	again, err := svc.GetOrCreate(context.Background(), 7, dto.ScoringPeriodQuery{Semester: "1", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	require.Equal(t, result.ID, again.ID)
	require.Equal(t, 1, records.createCalls)
}

func TestScoringServiceUnknownStudent(t *testing.T) {
	_, _, _, _, svc := newScoringFixture()

	_, err := svc.GetOrCreate(context.Background(), 999, dto.ScoringPeriodQuery{Semester: "1", AcademicYear: "2025-2026"})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestScoringServiceUpdateSectionRecomputesTotal(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seedDraft(records, 7)

	score := 18
	result, err := svc.UpdateSection(context.Background(), 7, 1, dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &score,
	})
	require.NoError(t, err)
	require.Equal(t, 18, result.TotalSelfScore)
	require.True(t, result.Sections[0].Touched)
	require.False(t, result.Sections[1].Touched)
}

func TestScoringServiceUpdateSectionRejectsOutOfRange(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seeded := seedDraft(records, 7)

	score := 25
	_, err := svc.UpdateSection(context.Background(), 7, 1, dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &score,
	})
	require.ErrorIs(t, err, ErrScoreOutOfRange)
	require.Equal(t, 0, records.updateCalls)

	stored := records.records[seeded.ID]
	require.Equal(t, 0, stored.TotalSelfScore)
	require.Equal(t, 0, stored.Sections[0].SelfScore)
}

func TestScoringServiceUpdateUnknownSection(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seedDraft(records, 7)

	score := 5
	_, err := svc.UpdateSection(context.Background(), 7, 6, dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &score,
	})
	require.ErrorIs(t, err, ErrUnknownSection)
}

func TestScoringServiceSaveDraftFillsAllSections(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seedDraft(records, 7)

	result, err := svc.SaveDraft(context.Background(), 7, dto.DraftSaveRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		Sections: []dto.SectionInput{
			{SectionNumber: 1, SelfScore: 18, Evidence: "Tham gia đầy đủ các buổi học"},
			{SectionNumber: 2, SelfScore: 23},
			{SectionNumber: 3, SelfScore: 17},
			{SectionNumber: 4, SelfScore: 22},
			{SectionNumber: 5, SelfScore: 8},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 88, result.TotalSelfScore)
	for _, section := range result.Sections {
		require.True(t, section.Touched)
	}
}

func TestScoringServiceSubmitRequiresAllSectionsTouched(t *testing.T) {
	records, _, notifier, _, svc := newScoringFixture()
	seeded := seedDraft(records, 7)

	// Touch four of five sections.
	record := records.records[seeded.ID]
	for i := 0; i < 4; i++ {
		record.Sections[i].Touched = true
	}
	records.records[seeded.ID] = record

	_, err := svc.Submit(context.Background(), 7, dto.SubmitRequest{Semester: "1", AcademicYear: "2025-2026"})
	require.ErrorIs(t, err, ErrSectionUnscored)
	require.Empty(t, notifier.published)
	require.Equal(t, models.ScoringStatusDraft, records.records[seeded.ID].Status)
}

func TestScoringServiceSubmitHappyPath(t *testing.T) {
	records, _, notifier, activity, svc := newScoringFixture()
	seeded := seedDraft(records, 7)

	record := records.records[seeded.ID]
	scores := []int{18, 23, 17, 22, 8}
	for i := range record.Sections {
		record.Sections[i].SelfScore = scores[i]
		record.Sections[i].Touched = true
	}
	record.RecomputeTotal()
	records.records[seeded.ID] = record

	result, err := svc.Submit(context.Background(), 7, dto.SubmitRequest{Semester: "1", AcademicYear: "2025-2026"})
	require.NoError(t, err)
	require.Equal(t, models.ScoringStatusSubmitted, result.Status)
	require.Equal(t, 88, result.TotalSelfScore)
	require.NotNil(t, result.SubmittedAt)
	require.WithinDuration(t, time.Now(), *result.SubmittedAt, time.Minute)

	require.Len(t, notifier.published, 1)
	require.Equal(t, "teacher", notifier.published[0].TargetRole)
	require.Equal(t, models.NotificationTypeInfo, notifier.published[0].Type)

	require.Len(t, activity.entries, 1)
	require.Equal(t, "scoring.submitted", activity.entries[0].Action)
	require.Equal(t, uint(7), activity.entries[0].ActorID)
}

func TestScoringServiceSubmitTwiceRejected(t *testing.T) {
	records, _, notifier, _, svc := newScoringFixture()
	seeded := seedDraft(records, 7)

	record := records.records[seeded.ID]
	for i := range record.Sections {
		record.Sections[i].Touched = true
	}
	records.records[seeded.ID] = record

	_, err := svc.Submit(context.Background(), 7, dto.SubmitRequest{Semester: "1", AcademicYear: "2025-2026"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), 7, dto.SubmitRequest{Semester: "1", AcademicYear: "2025-2026"})
	require.ErrorIs(t, err, ErrRecordNotEditable)
	require.Len(t, notifier.published, 1)
}

func TestScoringServiceEditAfterSubmitRejected(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seeded := seedDraft(records, 7)

	record := records.records[seeded.ID]
	record.Status = models.ScoringStatusSubmitted
	records.records[seeded.ID] = record

	score := 10
	_, err := svc.UpdateSection(context.Background(), 7, 1, dto.SectionUpdateRequest{
		Semester:     "1",
		AcademicYear: "2025-2026",
		SelfScore:    &score,
	})
	require.ErrorIs(t, err, ErrRecordNotEditable)
	require.Equal(t, 0, records.updateCalls)
}

func TestScoringServiceHistory(t *testing.T) {
	records, _, _, _, svc := newScoringFixture()
	seedDraft(records, 7)

	other := models.NewScoringRecord(7, "2", "2025-2026")
	other.ID = records.nextID
	records.nextID++
	records.records[other.ID] = other

	history, err := svc.History(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
