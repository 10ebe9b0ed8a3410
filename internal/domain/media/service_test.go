package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func upload(f *serviceFixture, data []byte, name, folder string) (*Media, error) {
	return f.svc.Upload(context.Background(), UploadInput{
		Reader:       bytes.NewReader(data),
		OriginalName: name,
		Folder:       folder,
	}, true)
}

func countFiles(t *testing.T, root Root) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(root.Dir(), func(_ string, d os.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			n++
		}
		return err
	}))
	return n
}

func TestService_UploadJPEGResized(t *testing.T) {
	f := newServiceFixture(t)

	m, err := f.svc.Upload(context.Background(), UploadInput{
		Reader:       bytes.NewReader(encodeJPEG(t, 4000, 1000)),
		OriginalName: "banner.jpeg",
		DeclaredType: "image/jpeg",
		Folder:       "products",
		Alt:          AltText{EN: strPtr("  Summer <b>sale</b> "), RU: strPtr("   ")},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", m.MimeType)
	assert.Equal(t, "banner.jpeg", m.OriginalName)
	assert.True(t, strings.HasSuffix(m.Filename, ".jpeg"))
	assert.Equal(t, "/uploads/products/"+m.Filename, m.URL)
	require.NotNil(t, m.Width)
	require.NotNil(t, m.Height)
	assert.Equal(t, 2000, *m.Width)
	assert.Equal(t, 500, *m.Height)
	assert.Equal(t, "Summer sale", *m.Alt.EN)
	assert.Nil(t, m.Alt.RU)

	info, err := os.Stat(m.Path)
	require.NoError(t, err)
	assert.Equal(t, m.Size, info.Size())

	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.URL, got.URL)
}

func TestService_UploadStoresGIFAndSVGUnchanged(t *testing.T) {
	f := newServiceFixture(t)

	gifData := encodeGIF(t, 3000, 10)
	m, err := upload(f, gifData, "anim.gif", "general")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", m.MimeType)
	assert.Nil(t, m.Width)
	stored, err := os.ReadFile(m.Path)
	require.NoError(t, err)
	assert.Equal(t, gifData, stored)

	m, err = upload(f, []byte(testSVG), "logo.svg", "pages")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", m.MimeType)
	assert.True(t, strings.HasSuffix(m.Filename, ".svg"))

	commented := "<!-- Generator: Adobe Illustrator 27.0.0 -->\n" + testSVG
	m, err = f.svc.Upload(context.Background(), UploadInput{
		Reader:       strings.NewReader(commented),
		OriginalName: "exported.svg",
		DeclaredType: "image/svg+xml",
		Folder:       "pages",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", m.MimeType)
	stored, err = os.ReadFile(m.Path)
	require.NoError(t, err)
	assert.Equal(t, commented, string(stored))
}

func TestService_UploadExtensionFollowsContent(t *testing.T) {
	f := newServiceFixture(t)

	m, err := upload(f, encodePNG(t, 10, 10), "fake.jpg", "general")
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.MimeType)
	assert.True(t, strings.HasSuffix(m.Filename, ".png"))
}

func TestService_UploadRejections(t *testing.T) {
	f := newServiceFixture(t)
	oversized := make([]byte, DefaultMaxUploadSize+1)
	copy(oversized, encodePNG(t, 1, 1))

	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{"empty", UploadInput{Reader: bytes.NewReader(nil), Folder: "general"}, ErrEmptyFile},
		{"too large", UploadInput{Reader: bytes.NewReader(oversized), Folder: "general"}, ErrFileTooLarge},
		{"pdf", UploadInput{Reader: strings.NewReader("%PDF-1.4\n..."), OriginalName: "a.pdf", Folder: "general"}, ErrInvalidMimeType},
		{"html disguised as png", UploadInput{Reader: strings.NewReader("<html><script>x</script></html>"), OriginalName: "a.png", DeclaredType: "image/png", Folder: "general"}, ErrInvalidMimeType},
		{"declared type not allowed", UploadInput{Reader: bytes.NewReader(encodePNG(t, 2, 2)), DeclaredType: "application/pdf", Folder: "general"}, ErrInvalidMimeType},
		{"unknown folder", UploadInput{Reader: bytes.NewReader(encodePNG(t, 2, 2)), Folder: "secret"}, ErrInvalidFolder},
		{"traversal folder", UploadInput{Reader: bytes.NewReader(encodePNG(t, 2, 2)), Folder: "../x"}, ErrInvalidFolder},
		{"corrupt png", UploadInput{Reader: strings.NewReader("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRbroken"), Folder: "general"}, ErrTransformFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), tt.in, true)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, countFiles(t, f.root))
	_, total, err := f.repo.List(context.Background(), ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestService_UploadAtExactLimit(t *testing.T) {
	repo := newTestRepository(t)
	root := newTestRoot(t)
	svc := NewService(repo, root, Options{MaxUploadSize: int64(len(testSVG))})

	_, err := svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader(testSVG), Folder: "general"}, true)
	assert.NoError(t, err)

	_, err = svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader(testSVG + " "), Folder: "general"}, true)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestService_UnauthorizedTouchesNothing(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)

	_, err = f.svc.Upload(context.Background(), UploadInput{Reader: bytes.NewReader(encodePNG(t, 5, 5)), Folder: "general"}, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateAlt(context.Background(), m.ID, AltText{EN: strPtr("x")}, false)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), m.ID, false), ErrForbidden)

	assert.Equal(t, 1, countFiles(t, f.root))
	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Alt.EN)
}

func TestService_UpdateAlt(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)

	got, err := f.svc.UpdateAlt(context.Background(), m.ID, AltText{
		EN: strPtr("Blue <script>alert(1)</script>bag"),
		ZH: strPtr("蓝色包"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "Blue bag", *got.Alt.EN)
	assert.Equal(t, "蓝色包", *got.Alt.ZH)
	assert.Equal(t, m.Filename, got.Filename)
	assert.Equal(t, m.Size, got.Size)

	_, err = f.svc.UpdateAlt(context.Background(), "missing", AltText{}, true)
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestService_DeleteTwice(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), m.ID, true))
	_, err = os.Stat(m.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.ErrorIs(t, f.svc.Delete(context.Background(), m.ID, true), ErrMediaNotFound)
}

func TestService_DeleteWithFileAlreadyGone(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)
	require.NoError(t, os.Remove(m.Path))

	require.NoError(t, f.svc.Delete(context.Background(), m.ID, true))

	warnings := f.logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("id", m.ID)).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "orphaned")

	_, err = f.repo.GetByID(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestService_DeleteKeepsRecordWhenFileRemovalFails(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)

	// a non-empty directory in place of the file makes os.Remove fail
	require.NoError(t, os.Remove(m.Path))
	require.NoError(t, os.MkdirAll(filepath.Join(m.Path, "child"), 0o755))

	err = f.svc.Delete(context.Background(), m.ID, true)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = f.repo.GetByID(context.Background(), m.ID)
	assert.NoError(t, err)
}

func TestService_DeleteRecordOutsideRoot(t *testing.T) {
	f := newServiceFixture(t)
	outside := filepath.Join(t.TempDir(), "keep.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	m := &Media{Filename: "keep.png", MimeType: "image/png", Size: 1, Folder: "general", URL: "/uploads/general/keep.png", Path: outside}
	require.NoError(t, f.repo.Create(context.Background(), m))

	require.NoError(t, f.svc.Delete(context.Background(), m.ID, true))
	_, err := os.Stat(outside)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("outside upload root").Len())
}

func TestService_GetOrphaned(t *testing.T) {
	f := newServiceFixture(t)
	m, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)
	require.NoError(t, os.Remove(m.Path))

	_, err = f.svc.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrOrphanedMedia)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestService_GetRecordOutsideRoot(t *testing.T) {
	f := newServiceFixture(t)
	outside := filepath.Join(t.TempDir(), "passwd.png")
	require.NoError(t, os.WriteFile(outside, encodePNG(t, 5, 5), 0o644))

	m := &Media{
		Filename: "1700000000000-0123456789abcdef.png",
		MimeType: "image/png",
		Size:     1,
		Folder:   "general",
		URL:      "/uploads/general/1700000000000-0123456789abcdef.png",
		Path:     outside,
	}
	require.NoError(t, f.repo.Create(context.Background(), m))

	_, err := f.svc.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, ErrOrphanedMedia)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, f.logs.FilterMessage("media record points outside upload root").Len())
}

func TestService_ListPaging(t *testing.T) {
	f := newServiceFixture(t)
	for i := 0; i < 3; i++ {
		_, err := upload(f, encodePNG(t, 5, 5), "a.png", "articles")
		require.NoError(t, err)
	}
	_, err := upload(f, encodePNG(t, 5, 5), "a.png", "general")
	require.NoError(t, err)

	items, total, err := f.svc.List(context.Background(), "articles", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 1)

	_, _, err = f.svc.List(context.Background(), "nope", 1, 10)
	assert.ErrorIs(t, err, ErrInvalidFolder)
}

func TestNormalizePage(t *testing.T) {
	p, l := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, DefaultPageLimit, l)

	p, l = NormalizePage(3, 1000)
	assert.Equal(t, 3, p)
	assert.Equal(t, MaxPageLimit, l)
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, media *Media) error {
	return m.Called(ctx, media).Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*Media, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Media), args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, f ListFilter) ([]*Media, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]*Media), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) UpdateAlt(ctx context.Context, id string, alt AltText) error {
	return m.Called(ctx, id, alt).Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) All(ctx context.Context) ([]*Media, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*Media), args.Error(1)
}

func TestService_UploadRollsBackFileWhenRecordFails(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*media.Media")).Return(errors.New("db down"))
	root := newTestRoot(t)
	svc := NewService(repo, root, Options{})

	_, err := svc.Upload(context.Background(), UploadInput{Reader: strings.NewReader(testSVG), Folder: "general"}, true)
	assert.Error(t, err)
	assert.Equal(t, 0, countFiles(t, root))
	repo.AssertExpectations(t)
}

func TestService_DeleteRecordFailureAfterFileRemoved(t *testing.T) {
	root := newTestRoot(t)
	path := writeUpload(t, root, "general/a.png", []byte("x"))
	m := &Media{ID: "id-1", Path: path, URL: "/uploads/general/a.png"}

	repo := new(mockRepository)
	repo.On("GetByID", mock.Anything, "id-1").Return(m, nil)
	repo.On("Delete", mock.Anything, "id-1").Return(errors.New("db down"))
	svc := NewService(repo, root, Options{})

	assert.Error(t, svc.Delete(context.Background(), "id-1", true))
	repo.AssertExpectations(t)
}
