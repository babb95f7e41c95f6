// Package httpapi exposes the recommender over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/GoRehab/internal/catalog"
	"github.com/Skufu/GoRehab/internal/engine"
	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/policy"
	"github.com/Skufu/GoRehab/internal/profile"
)

// HealthChecker reports whether the knowledge base is usable.
// *kb.Provider implements it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Engine      *engine.Engine
	Catalog     *catalog.Catalog
	Rules       *policy.Rules
	Health      HealthChecker
	Logger      zerolog.Logger
	CORSOrigins []string
}

// NewRouter wires every route.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	// Identifiers may contain escaped slashes, so route on the raw path.
	router.UseRawPath = true
	router.Use(
		requestID(),
		requestLogger(d.Logger),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(corsConfig(d.CORSOrigins)),
	)

	h := &handlers{deps: d}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.readyz)

	api := router.Group("/api")
	api.POST("/find-program", h.findPrograms)
	api.GET("/programs", h.listPrograms)
	api.GET("/programs/:id", h.programDetail)
	api.GET("/concepts", h.listConcepts)
	api.GET("/diagnoses", h.listDiagnoses)

	return router
}

// corsConfig allows every origin when none are listed or one of them is "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

type handlers struct {
	deps Deps
}

func (h *handlers) readyz(c *gin.Context) {
	if h.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "kb": "unknown"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	err := h.deps.Health.Ping(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "kb": "ready"})
	case errors.Is(err, kb.ErrPending):
		// Lazy loading: the first real request triggers the build.
		c.JSON(http.StatusOK, gin.H{"status": "ok", "kb": "pending"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"kb":     "unhealthy: " + err.Error(),
		})
	}
}

func (h *handlers) findPrograms(c *gin.Context) {
	var payload profile.Profile
	if err := c.ShouldBind(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	programs, err := h.deps.Engine.FindPrograms(c.Request.Context(), payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"programs": programs,
		"count":    len(programs),
		"mode":     h.deps.Engine.Mode(),
	})
}

func (h *handlers) listPrograms(c *gin.Context) {
	programs, err := h.deps.Catalog.ListPrograms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"programs": programs, "count": len(programs)})
}

func (h *handlers) programDetail(c *gin.Context) {
	detail, err := h.deps.Catalog.ProgramDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handlers) listConcepts(c *gin.Context) {
	kind, ok := kb.ParseKind(c.DefaultQuery("kind", string(kb.KindSymptom)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}
	concepts, err := h.deps.Catalog.ListConcepts(c.Request.Context(), kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "concepts": concepts})
}

func (h *handlers) listDiagnoses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"diagnoses": h.deps.Rules.DiagnosisNames()})
}

// fail maps engine and catalog errors onto status codes.
func (h *handlers) fail(c *gin.Context, err error) {
	var verr *profile.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"details": verr.Fields,
		})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, kb.ErrUnavailable):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge_base_unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
