package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

func TestExportServiceScoringCSV(t *testing.T) {
	records := newFakeScoringRepo()
	record := seedSubmitted(records, 7, []int{18, 23, 17, 22, 8})
	record.Student = models.Student{StudentCode: "SV007", FullName: "Nguyễn Văn An", ClassID: "CNTT01"}
	record.Sections[0].Evidence = "Tham gia \"tuần lễ\" công dân"
	teacherScore := 87
	final := 87
	record.TeacherScore = &teacherScore
	record.FinalScore = &final
	record.Status = models.ScoringStatusGraded
	records.records[record.ID] = record

	svc := NewExportService(records, &fakeStudentRepo{}, testLogger())

	payload, filename, err := svc.ScoringCSV(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, "phieu-ren-luyen-SV007-hk1-2025-2026.csv", filename)

	require.True(t, bytes.HasPrefix(payload, []byte{0xEF, 0xBB, 0xBF}))

	body := string(payload[3:])
	require.Contains(t, body, `"Mã sinh viên","SV007"`)
	require.Contains(t, body, `"Tổng điểm tự đánh giá","88"`)
	require.Contains(t, body, `"Xếp loại","Tốt"`)
	require.Contains(t, body, `"Trạng thái","Đã chấm"`)
	// Embedded quotes double per RFC 4180.
	require.Contains(t, body, `"Tham gia ""tuần lễ"" công dân"`)

	for _, line := range strings.Split(strings.TrimSpace(body), "\r\n") {
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, `"`), "line not quoted: %s", line)
		require.True(t, strings.HasSuffix(line, `"`), "line not quoted: %s", line)
	}
}

func TestExportServiceStudentScoringCSV(t *testing.T) {
	records := newFakeScoringRepo()
	record := seedSubmitted(records, 7, []int{18, 23, 17, 22, 8})
	record.Student = models.Student{StudentCode: "SV007", FullName: "Nguyễn Văn An", ClassID: "CNTT01"}
	records.records[record.ID] = record

	svc := NewExportService(records, &fakeStudentRepo{}, testLogger())

	payload, filename, err := svc.StudentScoringCSV(context.Background(), 7, "1", "2025-2026")
	require.NoError(t, err)
	require.Equal(t, "phieu-ren-luyen-SV007-hk1-2025-2026.csv", filename)
	require.Contains(t, string(payload), `"Trạng thái","Đã nộp"`)

	_, _, err = svc.StudentScoringCSV(context.Background(), 7, "2", "2025-2026")
	require.ErrorIs(t, err, ErrScoringRecordNotFound)
}

func TestExportServiceScoringCSVMissingRecord(t *testing.T) {
	svc := NewExportService(newFakeScoringRepo(), &fakeStudentRepo{}, testLogger())

	_, _, err := svc.ScoringCSV(context.Background(), 999)
	require.ErrorIs(t, err, ErrScoringRecordNotFound)
}

type listingStudentRepo struct {
	fakeStudentRepo
	listed []models.Student
}

func (l *listingStudentRepo) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, int64, error) {
	return l.listed, int64(len(l.listed)), nil
}

func TestExportServiceRosterCSV(t *testing.T) {
	repo := &listingStudentRepo{listed: []models.Student{
		{StudentCode: "SV001", FullName: "Trần Thị Bình", Email: "binh@example.edu.vn", ClassID: "CNTT01", Status: models.StudentStatusActive},
	}}
	svc := NewExportService(newFakeScoringRepo(), repo, testLogger())

	payload, filename, err := svc.RosterCSV(context.Background(), repository.StudentFilter{})
	require.NoError(t, err)
	require.Equal(t, "danh-sach-sinh-vien.csv", filename)
	require.Contains(t, string(payload), `"SV001","Trần Thị Bình"`)
}
