package media

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"storefront/internal/database"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`

func testImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(w, h), imaging.JPEG))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(w, h), imaging.PNG))
	return buf.Bytes()
}

func encodeWebP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, testImage(w, h), &webp.Options{Quality: 90}))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func newTestRoot(t *testing.T) Root {
	t.Helper()
	root, err := NewRoot(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return root
}

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "media.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &Media{}))
	return NewRepository(db)
}

type serviceFixture struct {
	svc  *Service
	repo Repository
	root Root
	logs *observer.ObservedLogs
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	repo := newTestRepository(t)
	root := newTestRoot(t)
	svc := NewService(repo, root, Options{Logger: zap.New(core)})
	return &serviceFixture{svc: svc, repo: repo, root: root, logs: logs}
}

func strPtr(s string) *string { return &s }
