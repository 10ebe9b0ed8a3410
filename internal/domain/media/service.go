package media

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"storefront/internal/pkg/metrics"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	maxOriginalName  = 255
)

var DefaultFolders = []string{"general", "products", "articles", "pages"}

type Options struct {
	MaxUploadSize        int64
	Folders              []string
	TransformConcurrency int
	Logger               *zap.Logger
	Metrics              *metrics.Media
}

// UploadInput is one inbound file. DeclaredType is what the client claimed;
// the stored type is always sniffed from the bytes.
type UploadInput struct {
	Reader       io.Reader
	OriginalName string
	DeclaredType string
	Folder       string
	Alt          AltText
}

// Service runs the write path (validate, transform, store, record) and the
// deletion path. Mutations require the caller to be authorized upstream.
type Service struct {
	repo        Repository
	root        Root
	writer      *Writer
	transformer *Transformer
	maxSize     int64
	folders     []string
	sanitizer   *bluemonday.Policy
	log         *zap.Logger
	metrics     *metrics.Media
}

func NewService(repo Repository, root Root, opts Options) *Service {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(opts.Folders) == 0 {
		opts.Folders = DefaultFolders
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		root:        root,
		writer:      NewWriter(root),
		transformer: NewTransformer(opts.TransformConcurrency),
		maxSize:     opts.MaxUploadSize,
		folders:     opts.Folders,
		sanitizer:   bluemonday.StrictPolicy(),
		log:         opts.Logger.Named("media"),
		metrics:     opts.Metrics,
	}
}

func (s *Service) MaxUploadSize() int64 { return s.maxSize }

func (s *Service) Upload(ctx context.Context, in UploadInput, authorized bool) (m *Media, err error) {
	start := time.Now()
	defer func() {
		var size int64
		if m != nil {
			size = m.Size
		}
		s.metrics.ObserveUpload(time.Since(start), size, resultLabel(err))
	}()

	if !authorized {
		return nil, ErrForbidden
	}
	if err := ValidateFolder(in.Folder, s.folders); err != nil {
		return nil, err
	}
	if declared := normalizeMimeType(in.DeclaredType); declared != "" && declared != "application/octet-stream" && !IsAllowedMimeType(declared) {
		return nil, ErrInvalidMimeType
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, s.maxSize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	mimeType := detectMimeType(data)
	if err := Classify(mimeType, int64(len(data)), s.maxSize); err != nil {
		return nil, err
	}

	payload := data
	var width, height *int
	if IsTransformable(mimeType) {
		out, err := s.transformer.Transform(ctx, data, mimeType)
		if err != nil {
			s.log.Info("upload rejected by transformer", zap.String("mime_type", mimeType), zap.Error(err))
			return nil, err
		}
		payload = out.Data
		width, height = &out.Width, &out.Height
	}

	stored, err := s.writer.Store(payload, storedExtension(in.OriginalName, mimeType), in.Folder)
	if err != nil {
		s.log.Error("failed to store upload", zap.String("folder", in.Folder), zap.Error(err))
		return nil, err
	}

	m = &Media{
		Filename:     stored.Filename,
		OriginalName: displayName(in.OriginalName),
		MimeType:     mimeType,
		Size:         stored.Size,
		Folder:       in.Folder,
		URL:          stored.URL,
		Path:         stored.Path,
		Width:        width,
		Height:       height,
		Alt:          s.sanitizeAlt(in.Alt),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if rmErr := os.Remove(stored.Path); rmErr != nil {
			s.log.Error("failed to roll back stored file", zap.String("path", stored.Path), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("save media record: %w", err)
	}

	s.log.Info("media uploaded",
		zap.String("id", m.ID),
		zap.String("url", m.URL),
		zap.String("mime_type", m.MimeType),
		zap.Int64("size", m.Size),
	)
	return m, nil
}

// Get returns the record only while its file still exists; a record without
// a file is reported as not found and logged for operators.
func (s *Service) Get(ctx context.Context, id string) (*Media, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.root.Contains(m.Path) {
		s.log.Error("media record points outside upload root", zap.String("id", m.ID), zap.String("path", m.Path))
		return nil, ErrOrphanedMedia
	}
	if _, err := os.Stat(m.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Error("orphaned media record: file missing", zap.String("id", m.ID), zap.String("path", m.Path))
			return nil, ErrOrphanedMedia
		}
		return nil, fmt.Errorf("%w: stat: %v", ErrStorage, err)
	}
	return m, nil
}

// List pages through records, newest first. page is 1-based.
func (s *Service) List(ctx context.Context, folder string, page, limit int) ([]*Media, int64, error) {
	if folder != "" {
		if err := ValidateFolder(folder, s.folders); err != nil {
			return nil, 0, err
		}
	}
	page, limit = NormalizePage(page, limit)
	return s.repo.List(ctx, ListFilter{Folder: folder, Limit: limit, Offset: (page - 1) * limit})
}

// UpdateAlt replaces all four alt strings. It is the only post-creation mutation.
func (s *Service) UpdateAlt(ctx context.Context, id string, alt AltText, authorized bool) (*Media, error) {
	if !authorized {
		return nil, ErrForbidden
	}
	if err := s.repo.UpdateAlt(ctx, id, s.sanitizeAlt(alt)); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes the file and then the record. A file that is already gone
// does not stop the record from being deleted.
func (s *Service) Delete(ctx context.Context, id string, authorized bool) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDelete(time.Since(start), resultLabel(err)) }()

	if !authorized {
		return ErrForbidden
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.removeFile(m); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("media deleted", zap.String("id", id), zap.String("url", m.URL))
	return nil
}

func (s *Service) removeFile(m *Media) error {
	if !s.root.Contains(m.Path) {
		s.log.Error("media record points outside upload root, file left untouched",
			zap.String("id", m.ID), zap.String("path", m.Path))
		return nil
	}

	err := os.Remove(m.Path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		s.log.Warn("orphaned media record: file already absent, deleting record anyway",
			zap.String("id", m.ID), zap.String("path", m.Path))
		return nil
	default:
		s.log.Error("failed to remove media file", zap.String("id", m.ID), zap.String("path", m.Path), zap.Error(err))
		return fmt.Errorf("%w: remove file: %v", ErrStorage, err)
	}
}

// NormalizePage clamps paging input to a 1-based page and a limit in (0, MaxPageLimit].
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func (s *Service) sanitizeAlt(a AltText) AltText {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(*v)))
		if out == "" {
			return nil
		}
		return &out
	}
	return AltText{EN: clean(a.EN), RU: clean(a.RU), KK: clean(a.KK), ZH: clean(a.ZH)}
}

// displayName keeps the last path element of the client's file name for
// display; it is never used to build a filesystem path.
func displayName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if len(name) <= maxOriginalName {
		return name
	}
	cut := maxOriginalName
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidationError(err):
		return "rejected"
	case errors.Is(err, ErrTransformFailed):
		return "transform_failed"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
