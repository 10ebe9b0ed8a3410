package media

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/pkg/metrics"
	"storefront/internal/pkg/response"
	"storefront/internal/pkg/validator"
)

// multipart framing and form fields on top of the file itself
const multipartOverhead = 1 << 20

// Handler exposes the media pipeline over HTTP. Admin routes rely on the
// auth middleware having set "is_admin"; /uploads is public.
type Handler struct {
	service *Service
	files   *FileServer
	log     *zap.Logger
	metrics *metrics.Media
}

func NewHandler(service *Service, files *FileServer, log *zap.Logger, m *metrics.Media) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, files: files, log: log.Named("media_http"), metrics: m}
}

// Upload godoc
// @Summary Upload a media file
// @Description Accepts JPEG, PNG, GIF, WebP or SVG. Raster images are bounded to 2000px and re-encoded.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Param folder formData string false "Destination folder" default(general)
// @Param alt_en formData string false "Alt text (en)"
// @Success 201 {object} response.Envelope{data=MediaResponse}
// @Failure 400,401,403,413,422,500 {object} response.Envelope
// @Router /admin/media [post]
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.MaxUploadSize()+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ErrFileTooLarge.Error())
			return
		}
		response.Error(c, http.StatusBadRequest, "NO_FILE", "no file provided")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error("failed to open multipart file", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "upload failed")
		return
	}
	defer file.Close()

	m, err := h.service.Upload(c.Request.Context(), UploadInput{
		Reader:       file,
		OriginalName: fileHeader.Filename,
		DeclaredType: fileHeader.Header.Get("Content-Type"),
		Folder:       c.DefaultPostForm("folder", "general"),
		Alt:          altFromForm(c),
	}, isAuthorized(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, ToResponse(m))
}

// List godoc
// @Summary List media
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param folder query string false "Folder filter"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope{data=[]MediaResponse}
// @Router /admin/media [get]
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))

	items, total, err := h.service.List(c.Request.Context(), c.Query("folder"), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]MediaResponse, 0, len(items))
	for _, m := range items {
		out = append(out, ToResponse(m))
	}
	page, limit = NormalizePage(page, limit)
	response.Paged(c, http.StatusOK, out, ListMeta{Page: page, Limit: limit, Total: total})
}

// Get godoc
// @Summary Get media metadata by ID
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope{data=MediaResponse}
// @Failure 404 {object} response.Envelope
// @Router /admin/media/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	m, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ToResponse(m))
}

// UpdateAlt godoc
// @Summary Replace localized alt text
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Param request body UpdateAltRequest true "Alt text per locale"
// @Success 200 {object} response.Envelope{data=MediaResponse}
// @Failure 400,403,404,422 {object} response.Envelope
// @Router /admin/media/{id} [patch]
func (h *Handler) UpdateAlt(c *gin.Context) {
	var req UpdateAltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid alt text", errs)
		return
	}

	m, err := h.service.UpdateAlt(c.Request.Context(), c.Param("id"), req.AltText(), isAuthorized(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ToResponse(m))
}

// Delete godoc
// @Summary Delete media (file + record)
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 403,404,500 {object} response.Envelope
// @Router /admin/media/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id, isAuthorized(c)); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// Serve streams a stored file. The content type comes from the extension
// and responses are cacheable forever because stored names are never reused.
func (h *Handler) Serve(c *gin.Context) {
	requested := strings.TrimPrefix(c.Param("filepath"), "/")

	asset, err := h.files.Open(requested)
	if err != nil {
		if IsPathRejected(err) {
			h.log.Warn("rejected upload path",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
		}
		h.metrics.ObserveServe(h.writeError(c, err))
		return
	}

	c.Header("Cache-Control", CacheControlImmutable)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Content-Security-Policy", ContentSecurityPolicy)
	c.Header("Last-Modified", asset.ModTime.UTC().Format(http.TimeFormat))
	c.Header("Content-Length", strconv.Itoa(len(asset.Data)))
	c.Data(http.StatusOK, asset.ContentType, asset.Data)
	h.metrics.ObserveServe(http.StatusOK)
}

// writeError maps pipeline errors onto the response envelope and returns the status used.
func (h *Handler) writeError(c *gin.Context, err error) int {
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"

	switch {
	case errors.Is(err, ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", err.Error()
	case errors.Is(err, ErrFileTooLarge):
		status, code, message = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", ErrFileTooLarge.Error()
	case errors.Is(err, ErrEmptyFile):
		status, code, message = http.StatusBadRequest, "EMPTY_FILE", ErrEmptyFile.Error()
	case errors.Is(err, ErrInvalidMimeType):
		status, code, message = http.StatusBadRequest, "INVALID_MIME_TYPE", ErrInvalidMimeType.Error()
	case errors.Is(err, ErrInvalidFolder):
		status, code, message = http.StatusBadRequest, "INVALID_FOLDER", ErrInvalidFolder.Error()
	case errors.Is(err, ErrTransformFailed):
		status, code, message = http.StatusUnprocessableEntity, "TRANSFORM_FAILED", ErrTransformFailed.Error()
	case errors.Is(err, ErrPathTraversal):
		status, code, message = http.StatusForbidden, "PATH_TRAVERSAL", "forbidden"
	case errors.Is(err, ErrInvalidPath):
		status, code, message = http.StatusBadRequest, "INVALID_PATH", ErrInvalidPath.Error()
	case IsNotFound(err):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "not found"
	default:
		h.log.Error("media request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}

	response.Error(c, status, code, message)
	return status
}

func altFromForm(c *gin.Context) AltText {
	field := func(locale string) *string {
		v, ok := c.GetPostForm("alt_" + locale)
		if !ok {
			return nil
		}
		return &v
	}
	return AltText{EN: field(LocaleEN), RU: field(LocaleRU), KK: field(LocaleKK), ZH: field(LocaleZH)}
}

func isAuthorized(c *gin.Context) bool {
	return c.GetBool("is_admin")
}
