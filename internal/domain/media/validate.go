package media

import (
	"path/filepath"
	"slices"
	"strings"
)

const DefaultMaxUploadSize = 5 * 1024 * 1024 // 5 MiB

// allowedTypes maps each accepted upload MIME type to its extensions; the
// first entry is the canonical one used when the client's extension is unusable.
var allowedTypes = map[string][]string{
	"image/jpeg":    {".jpg", ".jpeg"},
	"image/png":     {".png"},
	"image/gif":     {".gif"},
	"image/webp":    {".webp"},
	"image/svg+xml": {".svg"},
}

// IsAllowedMimeType reports whether mimeType is on the upload allow-list.
func IsAllowedMimeType(mimeType string) bool {
	_, ok := allowedTypes[normalizeMimeType(mimeType)]
	return ok
}

// Classify gates an upload before any bytes are transformed or stored.
func Classify(mimeType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > maxSize {
		return ErrFileTooLarge
	}
	if !IsAllowedMimeType(mimeType) {
		return ErrInvalidMimeType
	}
	return nil
}

// ValidateFolder applies the retrieval-path lexical rules to a folder label
// and then requires it to be one of the configured folders.
func ValidateFolder(folder string, allowed []string) error {
	if err := checkRequestedPath(folder); err != nil {
		return ErrInvalidFolder
	}
	if strings.Contains(folder, "/") || folder == "." {
		return ErrInvalidFolder
	}
	if !slices.Contains(allowed, folder) {
		return ErrInvalidFolder
	}
	return nil
}

// checkRequestedPath is the cheap lexical gate run before any filesystem call.
func checkRequestedPath(p string) error {
	switch {
	case p == "":
		return ErrInvalidPath
	case strings.Contains(p, ".."):
		return ErrPathTraversal
	case strings.ContainsAny(p, "\\\x00"):
		return ErrInvalidPath
	case strings.HasPrefix(p, "/"), filepath.IsAbs(p):
		return ErrInvalidPath
	}
	return nil
}

// storedExtension picks the extension for a new file: the client's own when
// it is a plain extension valid for the detected type, else the canonical one.
func storedExtension(originalName, mimeType string) string {
	exts := allowedTypes[normalizeMimeType(mimeType)]
	ext := sanitizeExt(filepath.Ext(originalName))
	if ext != "" && slices.Contains(exts, ext) {
		return ext
	}
	if len(exts) > 0 {
		return exts[0]
	}
	return ext
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		return ""
	}
	body := ext[1:]
	if body == "" || len(body) > 10 {
		return ""
	}
	for _, r := range body {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func normalizeMimeType(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
