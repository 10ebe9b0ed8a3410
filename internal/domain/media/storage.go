package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is the URL prefix every stored asset is exposed under.
const PublicPrefix = "/uploads"

// Root is the canonical upload directory. Build it once and hand the same
// value to the writer, the file server and the deletion path so all of them
// agree on the containment boundary.
type Root struct {
	dir string
}

// NewRoot creates dir if needed and resolves it to an absolute, symlink-free path.
func NewRoot(dir string) (Root, error) {
	if strings.TrimSpace(dir) == "" {
		return Root{}, errors.New("upload root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Root{}, fmt.Errorf("create upload root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolve upload root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, fmt.Errorf("resolve upload root: %w", err)
	}
	return Root{dir: canonical}, nil
}

func (r Root) Dir() string { return r.dir }

// Contains reports whether path lies strictly inside the root.
func (r Root) Contains(path string) bool {
	if r.dir == "" || !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || rel == "." {
		return false
	}
	return !escapesRoot(rel)
}

func escapesRoot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

// StoredFile describes a file the Writer has put on disk.
type StoredFile struct {
	Filename string
	URL      string
	Path     string
	Size     int64
}

// Writer lays files out as {root}/{folder}/{unixMillis}-{token}{ext}.
// Names are practically unique; no lookup against existing files is made.
type Writer struct {
	root  Root
	now   func() time.Time
	token func() string
}

func NewWriter(root Root) *Writer {
	return &Writer{root: root, now: time.Now, token: randomToken}
}

func (w *Writer) Store(data []byte, ext, folder string) (*StoredFile, error) {
	ext = strings.ToLower(ext)
	if ext != "" && sanitizeExt(ext) == "" {
		return nil, fmt.Errorf("%w: extension %q", ErrInvalidPath, ext)
	}
	if err := checkRequestedPath(folder); err != nil {
		return nil, fmt.Errorf("folder %q: %w", folder, err)
	}

	filename := fmt.Sprintf("%d-%s%s", w.now().UnixMilli(), w.token(), ext)
	dir := filepath.Join(w.root.dir, folder)
	path := filepath.Join(dir, filename)
	if !w.root.Contains(path) {
		return nil, fmt.Errorf("folder %q: %w", folder, ErrPathTraversal)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create folder: %v", ErrStorage, err)
	}
	if err := writeNew(path, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return &StoredFile{
		Filename: filename,
		URL:      PublicPrefix + "/" + folder + "/" + filename,
		Path:     path,
		Size:     int64(len(data)),
	}, nil
}

// writeNew refuses to replace an existing file, so a residual name collision
// fails this upload instead of overwriting another asset.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	writeErr := func() error {
		if _, err := f.Write(data); err != nil {
			return err
		}
		if err := f.Sync(); err != nil {
			return err
		}
		return f.Close()
	}()
	if writeErr != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", writeErr)
	}
	return nil
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
