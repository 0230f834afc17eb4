package api

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attention/internal/api/handlers"
	"github.com/your-org/attention/internal/api/ws"
	"github.com/your-org/attention/internal/auth"
	"github.com/your-org/attention/internal/engine"
)

type RouterConfig struct {
	APIKey      string
	CORSOrigins []string
	Engine      *engine.Engine
	Hub         *ws.Hub
	// Checks are readiness probes by dependency name.
	Checks map[string]handlers.Check
	// Index serves identity search when the vector index is available.
	Index handlers.IdentitySearcher
	// Portraits stores uploaded capture images.
	Portraits handlers.PortraitStore
	// EmbedFn extracts a face embedding from image bytes.
	EmbedFn func(imageData []byte) ([]float32, float64, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(corsMiddleware(cfg.CORSOrigins))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Engine, cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Live view
	attH := handlers.NewAttentionHandler(cfg.Engine)
	v1.GET("/tracks", attH.Tracks)
	v1.GET("/counter", attH.Counter)
	v1.POST("/counter/reset", attH.ResetCounter)

	// Attention history
	v1.GET("/attention/daily", attH.Daily)
	v1.GET("/attention/top", attH.Top)
	v1.GET("/attention/recent", attH.Recent)
	v1.GET("/attention/dates", attH.Dates)
	v1.DELETE("/attention", attH.Clear)

	// Identities
	idH := handlers.NewIdentityHandler(cfg.Engine)
	idH.Index = cfg.Index
	idH.Portraits = cfg.Portraits
	idH.EmbedFn = cfg.EmbedFn
	v1.GET("/identities", idH.List)
	v1.POST("/identities", idH.Enroll)
	v1.DELETE("/identities", idH.Clear)
	v1.POST("/identities/search", idH.Search)
	v1.GET("/identities/:id", idH.Get)
	v1.DELETE("/identities/:id", idH.Delete)
	v1.GET("/identities/:id/records", idH.Records)
	v1.POST("/identities/:id/captures", idH.Augment)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AddAllowHeaders(auth.HeaderName)
	return cors.New(cfg)
}
