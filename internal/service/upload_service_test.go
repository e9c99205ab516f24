package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/renluyen-go-api/internal/models"
)

type memoryStorage struct {
	uploads map[string][]byte
}

func (m *memoryStorage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[name] = data
	return "https://cdn.example.com/" + name, nil
}

type memoryUploadRepo struct {
	records []models.UploadRecord
}

func (m *memoryUploadRepo) Create(ctx context.Context, record *models.UploadRecord) error {
	record.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryUploadRepo) ListByUser(ctx context.Context, userID uint, kind string) ([]models.UploadRecord, error) {
	var out []models.UploadRecord
	for _, record := range m.records {
		if record.UserID != nil && *record.UserID == userID && (kind == "" || record.Kind == kind) {
			out = append(out, record)
		}
	}
	return out, nil
}

func multipartFile(t *testing.T, name string, payload []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(len(payload)) + 10240)
	require.NoError(t, err)

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func pngPayload() []byte {
	return []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
}

func TestUploadServiceStoresEvidence(t *testing.T) {
	storage := &memoryStorage{}
	repo := &memoryUploadRepo{}
	svc := NewUploadService(storage, repo, 5, testLogger())

	userID := uint(7)
	file := multipartFile(t, "Minh Chứng 01.PNG", pngPayload())

	result, err := svc.Upload(context.Background(), file, "evidence", &userID)
	require.NoError(t, err)
	require.Equal(t, "image/png", result.MimeType)
	require.Equal(t, "minh-ch-ng-01.png", result.FileName)
	require.NotEmpty(t, result.Checksum)
	require.Contains(t, result.URL, "https://cdn.example.com/")

	require.Len(t, repo.records, 1)
	require.Equal(t, models.UploadKindEvidence, repo.records[0].Kind)
	require.Equal(t, userID, *repo.records[0].UserID)
}

func TestUploadServiceRejectsDisallowedType(t *testing.T) {
	storage := &memoryStorage{}
	repo := &memoryUploadRepo{}
	svc := NewUploadService(storage, repo, 5, testLogger())

	// ZIP magic bytes: archives are not valid conduct evidence.
	file := multipartFile(t, "evidence.zip", []byte{0x50, 0x4B, 0x03, 0x04, 0, 0, 0, 0})

	_, err := svc.Upload(context.Background(), file, "evidence", nil)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Empty(t, repo.records)
	require.Empty(t, storage.uploads)
}

func TestUploadServiceRejectsOversizedFile(t *testing.T) {
	storage := &memoryStorage{}
	repo := &memoryUploadRepo{}
	svc := NewUploadService(storage, repo, 1, testLogger())

	payload := append(pngPayload(), bytes.Repeat([]byte{0xAB}, 2*1024*1024)...)
	file := multipartFile(t, "big.png", payload)

	_, err := svc.Upload(context.Background(), file, "evidence", nil)
	require.ErrorIs(t, err, ErrUploadTooLarge)
	require.Empty(t, repo.records)
}

func TestUploadServiceListByUser(t *testing.T) {
	storage := &memoryStorage{}
	repo := &memoryUploadRepo{}
	svc := NewUploadService(storage, repo, 5, testLogger())

	userID := uint(7)
	_, err := svc.Upload(context.Background(), multipartFile(t, "a.png", pngPayload()), "evidence", &userID)
	require.NoError(t, err)

	listed, err := svc.ListByUser(context.Background(), userID, "evidence")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "bien-ban-hop-lop.pdf", sanitizeFileName("Bien Ban Hop Lop.PDF"))
	require.Equal(t, "a_b-c.png", sanitizeFileName("a_b-c.png"))

	generated := sanitizeFileName("???")
	require.Contains(t, generated, "upload-")
}
