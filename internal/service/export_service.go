package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/renluyen-go-api/internal/models"
	"github.com/noah-isme/renluyen-go-api/internal/repository"
)

// utf8BOM lets spreadsheet tools detect the encoding of Vietnamese text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportService renders scoring records and rosters as CSV downloads.
type ExportService interface {
	ScoringCSV(ctx context.Context, recordID uint) ([]byte, string, error)
	StudentScoringCSV(ctx context.Context, studentID uint, semester, academicYear string) ([]byte, string, error)
	RosterCSV(ctx context.Context, filter repository.StudentFilter) ([]byte, string, error)
}

type exportService struct {
	records  repository.ScoringRepository
	students repository.StudentRepository
	logger   zerolog.Logger
}

// NewExportService constructs an export service.
func NewExportService(records repository.ScoringRepository, students repository.StudentRepository, logger zerolog.Logger) ExportService {
	return &exportService{
		records:  records,
		students: students,
		logger:   logger.With().Str("component", "export_service").Logger(),
	}
}

func (s *exportService) ScoringCSV(ctx context.Context, recordID uint) ([]byte, string, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrScoringRecordNotFound
		}
		return nil, "", err
	}

	return renderScoringCSV(record)
}

func (s *exportService) StudentScoringCSV(ctx context.Context, studentID uint, semester, academicYear string) ([]byte, string, error) {
	record, err := s.records.GetByPeriod(ctx, studentID, semester, academicYear)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrScoringRecordNotFound
		}
		return nil, "", err
	}

	return renderScoringCSV(record)
}

func renderScoringCSV(record models.ScoringRecord) ([]byte, string, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	writeCSVRow(&buf, "Mã sinh viên", record.Student.StudentCode)
	writeCSVRow(&buf, "Họ và tên", record.Student.FullName)
	writeCSVRow(&buf, "Lớp", record.Student.ClassID)
	writeCSVRow(&buf, "Học kỳ", record.Semester)
	writeCSVRow(&buf, "Năm học", record.AcademicYear)
	writeCSVRow(&buf)

	writeCSVRow(&buf, "STT", "Nội dung đánh giá", "Điểm tối đa", "Điểm tự đánh giá", "Minh chứng")
	for _, section := range record.Sections {
		max, _ := models.SectionMaxScore(section.SectionNumber)
		writeCSVRow(&buf,
			strconv.Itoa(section.SectionNumber),
			models.SectionTitle(section.SectionNumber),
			strconv.Itoa(max),
			strconv.Itoa(section.SelfScore),
			section.Evidence,
		)
	}
	writeCSVRow(&buf)

	writeCSVRow(&buf, "Tổng điểm tự đánh giá", strconv.Itoa(record.TotalSelfScore))
	writeCSVRow(&buf, "Điểm lớp đánh giá", formatOptionalScore(record.ClassScore))
	writeCSVRow(&buf, "Điểm giáo viên", formatOptionalScore(record.TeacherScore))
	writeCSVRow(&buf, "Điểm kết luận", formatOptionalScore(record.FinalScore))
	if record.FinalScore != nil {
		writeCSVRow(&buf, "Xếp loại", models.GradeBand(*record.FinalScore))
	}
	writeCSVRow(&buf, "Trạng thái", statusLabel(record.Status))
	if record.Feedback != "" {
		writeCSVRow(&buf, "Nhận xét", record.Feedback)
	}

	filename := fmt.Sprintf("phieu-ren-luyen-%s-hk%s-%s.csv", record.Student.StudentCode, record.Semester, record.AcademicYear)

	return buf.Bytes(), filename, nil
}

func (s *exportService) RosterCSV(ctx context.Context, filter repository.StudentFilter) ([]byte, string, error) {
	filter.PageSize = 0
	students, _, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	writeCSVRow(&buf, "Mã sinh viên", "Họ và tên", "Email", "Lớp", "Trạng thái")
	for _, student := range students {
		writeCSVRow(&buf, student.StudentCode, student.FullName, student.Email, student.ClassID, student.Status)
	}

	s.logger.Info().Int("count", len(students)).Msg("roster exported")

	return buf.Bytes(), "danh-sach-sinh-vien.csv", nil
}

// writeCSVRow quotes every field so Vietnamese text with commas and
// newlines survives spreadsheet import unchanged.
func writeCSVRow(buf *bytes.Buffer, fields ...string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

func formatOptionalScore(score *int) string {
	if score == nil {
		return ""
	}
	return strconv.Itoa(*score)
}

func statusLabel(status string) string {
	switch status {
	case models.ScoringStatusDraft:
		return "Bản nháp"
	case models.ScoringStatusSubmitted:
		return "Đã nộp"
	case models.ScoringStatusGraded:
		return "Đã chấm"
	default:
		return status
	}
}
