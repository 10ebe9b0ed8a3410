package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	CacheControlImmutable = "public, max-age=31536000, immutable"
	ContentSecurityPolicy = "default-src 'none'; sandbox"
	fallbackContentType   = "application/octet-stream"
)

// serveContentTypes is the read-side classification. It is keyed on the
// extension only; file contents are never sniffed.
var serveContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".avif": "image/avif",
}

// ContentTypeFor maps a served file name to its Content-Type.
func ContentTypeFor(name string) string {
	if ct, ok := serveContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return fallbackContentType
}

// Asset is a file ready to be written to a client.
type Asset struct {
	Data        []byte
	ContentType string
	ModTime     time.Time
}

// FileServer resolves client-supplied paths under the upload root. It reads
// only the filesystem and never consults the metadata store.
type FileServer struct {
	root Root
}

func NewFileServer(root Root) *FileServer {
	return &FileServer{root: root}
}

// Resolve turns a path relative to the upload root into an absolute path of
// an existing regular file inside the root.
func (s *FileServer) Resolve(requested string) (string, error) {
	if err := checkRequestedPath(requested); err != nil {
		return "", err
	}

	joined := filepath.Join(s.root.dir, filepath.FromSlash(requested))
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// missing files and non-directory path components both end up here
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	// re-check after canonicalization: symlinks can point anywhere
	rel, err := filepath.Rel(s.root.dir, resolved)
	if err != nil || escapesRoot(rel) {
		return "", ErrPathTraversal
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	if !strings.HasPrefix(resolved, s.root.dir+string(filepath.Separator)) {
		return "", ErrFileNotFound
	}
	return resolved, nil
}

// Open resolves requested and reads the whole file.
func (s *FileServer) Open(requested string) (*Asset, error) {
	path, err := s.Resolve(requested)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: open: %v", ErrStorage, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %v", ErrStorage, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrStorage, err)
	}

	return &Asset{
		Data:        data,
		ContentType: ContentTypeFor(path),
		ModTime:     info.ModTime(),
	}, nil
}
