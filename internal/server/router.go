package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/domain/media"
	"storefront/internal/middleware"
	jwtsvc "storefront/internal/pkg/jwt"
	"storefront/internal/pkg/metrics"
)

// Deps is everything the HTTP surface needs; main builds it once.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	JWT      *jwtsvc.Service
	Registry *prometheus.Registry
}

// NewRouter wires the media pipeline behind gin. The upload root is created
// here so the writer and /uploads share one canonical directory.
func NewRouter(d Deps) (*gin.Engine, error) {
	root, err := media.NewRoot(d.Config.Media.UploadDir)
	if err != nil {
		return nil, err
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Registry != nil {
		reg, gatherer = d.Registry, d.Registry
	}
	mediaMetrics, err := metrics.NewMedia("storefront_media", reg)
	if err != nil {
		return nil, err
	}

	mediaService := media.NewService(media.NewRepository(d.DB), root, media.Options{
		MaxUploadSize:        d.Config.Media.MaxUploadBytes,
		Folders:              d.Config.Media.Folders,
		TransformConcurrency: d.Config.Media.TransformConcurrency,
		Logger:               d.Log,
		Metrics:              mediaMetrics,
	})
	mediaHandler := media.NewHandler(mediaService, media.NewFileServer(root), d.Log, mediaMetrics)
	uploadLimiter := middleware.NewRateLimiter(d.Config.Media.UploadRatePerMinute)

	r := gin.New()
	// client IPs feed the upload rate limit, so forwarded headers count only from known proxies
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(middleware.RequestLogger(d.Log), middleware.Recovery(d.Log))
	if len(d.Config.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.Config.CORSOrigins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization", "Accept", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	media.RegisterPublicRoutes(r, mediaHandler)

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuth(d.JWT), middleware.AdminOnly())
	media.RegisterAdminRoutes(admin, mediaHandler, uploadLimiter.Middleware())

	return r, nil
}
