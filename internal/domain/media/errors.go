package media

import "errors"

var (
	// validation: user-correctable, 4xx
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrInvalidMimeType = errors.New("file type is not allowed")
	ErrInvalidFolder   = errors.New("upload folder is not allowed")

	ErrTransformFailed = errors.New("image could not be processed")
	ErrStorage         = errors.New("storage i/o failure")

	// retrieval path rejections
	ErrInvalidPath   = errors.New("invalid path")
	ErrPathTraversal = errors.New("path escapes the upload root")

	ErrMediaNotFound = errors.New("media not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrOrphanedMedia = errors.New("media file is missing on disk")

	ErrForbidden = errors.New("not authorized to modify media")
)

// IsValidationError reports whether err is a rejected upload the caller can fix.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrInvalidMimeType) ||
		errors.Is(err, ErrInvalidFolder)
}

// IsPathRejected reports whether err came from the lexical or canonical path checks.
func IsPathRejected(err error) bool {
	return errors.Is(err, ErrInvalidPath) || errors.Is(err, ErrPathTraversal)
}

// IsNotFound covers missing records, missing files and orphaned records alike.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMediaNotFound) ||
		errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrOrphanedMedia)
}
