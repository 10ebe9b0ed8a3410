package media

import "github.com/gin-gonic/gin"

// RegisterPublicRoutes mounts the read-only /uploads/* file endpoint.
func RegisterPublicRoutes(r gin.IRouter, h *Handler) {
	r.GET(PublicPrefix+"/*filepath", h.Serve)
	r.HEAD(PublicPrefix+"/*filepath", h.Serve)
}

// RegisterAdminRoutes mounts media administration under an already
// authenticated group. uploadGuards run before the upload handler only.
func RegisterAdminRoutes(r *gin.RouterGroup, h *Handler, uploadGuards ...gin.HandlerFunc) {
	media := r.Group("/media")
	{
		media.POST("", append(uploadGuards, h.Upload)...)
		media.GET("", h.List)
		media.GET("/:id", h.Get)
		media.PATCH("/:id", h.UpdateAlt)
		media.DELETE("/:id", h.Delete)
	}
}
