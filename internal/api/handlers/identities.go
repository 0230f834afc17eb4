package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attention/internal/engine"
	"github.com/your-org/attention/internal/gallery"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/pkg/dto"
)

const defaultSearchLimit = 5

// IdentitySearcher ranks enrolled identities by distance to a probe.
type IdentitySearcher interface {
	SearchIdentities(ctx context.Context, probe []float32, limit int) ([]models.IdentityMatch, error)
}

// PortraitStore keeps uploaded capture images.
type PortraitStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type IdentityHandler struct {
	engine *engine.Engine
	// Index, when set, serves search from the vector index.
	Index IdentitySearcher
	// Portraits, when set, stores uploaded capture images.
	Portraits PortraitStore
	// EmbedFn extracts a face embedding and its quality from image bytes.
	// Image captures are refused while it is nil.
	EmbedFn func(imageData []byte) ([]float32, float64, error)
}

func NewIdentityHandler(e *engine.Engine) *IdentityHandler {
	return &IdentityHandler{engine: e}
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities := h.engine.Identities()
	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, id := range identities {
		resp = append(resp, dto.NewIdentityResponse(id))
	}
	c.JSON(http.StatusOK, gin.H{"identities": resp, "total": len(resp)})
}

func (h *IdentityHandler) Get(c *gin.Context) {
	id, ok := h.engine.Identity(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: gallery.ErrIdentityNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewIdentityResponse(id))
}

func (h *IdentityHandler) Records(c *gin.Context) {
	records := h.engine.RecordsForIdentity(c.Param("id"))
	if records == nil {
		records = []models.AttentionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})
}

// Enroll creates an identity from one or more captures.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	captures, ok := h.captures(c, req.Captures)
	if !ok {
		return
	}

	identity, err := h.engine.Enroll(c.Request.Context(), req.DisplayName, req.ExternalRef, captures)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewIdentityResponse(identity))
}

// Augment adds captures to an existing identity.
func (h *IdentityHandler) Augment(c *gin.Context) {
	var req dto.AugmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	captures, ok := h.captures(c, req.Captures)
	if !ok {
		return
	}

	id := c.Param("id")
	n, err := h.engine.Augment(c.Request.Context(), id, captures)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AugmentResponse{IdentityID: id, ReferenceCount: n})
}

func (h *IdentityHandler) Delete(c *gin.Context) {
	if err := h.engine.RemoveIdentity(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *IdentityHandler) Clear(c *gin.Context) {
	h.engine.ClearGallery(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Search ranks identities by distance to a probe embedding or image,
// regardless of the resolve threshold.
func (h *IdentityHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	probe := req.Embedding
	if req.Image != "" {
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "image must be base64 encoded"})
			return
		}
		emb, _, ok := h.embed(c, data)
		if !ok {
			return
		}
		probe = emb
	}
	if len(probe) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "embedding or image required"})
		return
	}

	if h.Index != nil {
		matches, err := h.Index.SearchIdentities(c.Request.Context(), probe, limit)
		if err == nil {
			c.JSON(http.StatusOK, dto.SearchResponse{Results: nonNil(matches), Total: len(matches), Source: "index"})
			return
		}
		slog.Warn("identity index search failed, using gallery", "error", err)
	}

	matches := h.engine.NearestIdentities(probe, limit)
	c.JSON(http.StatusOK, dto.SearchResponse{Results: nonNil(matches), Total: len(matches), Source: "gallery"})
}

// captures converts request captures, embedding and storing images. It
// writes the error response itself and reports false on failure.
func (h *IdentityHandler) captures(c *gin.Context, reqs []dto.CaptureRequest) ([]models.Capture, bool) {
	out := make([]models.Capture, 0, len(reqs))
	for _, r := range reqs {
		capture := models.Capture{
			Embedding:   r.Embedding,
			Quality:     r.Quality,
			PortraitRef: r.PortraitRef,
		}
		if r.Image != "" {
			data, err := base64.StdEncoding.DecodeString(r.Image)
			if err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{
					Error:  "capture image must be base64 encoded",
					Reason: string(gallery.ReasonInvalidCapture),
				})
				return nil, false
			}
			emb, quality, ok := h.embed(c, data)
			if !ok {
				return nil, false
			}
			capture.Embedding = emb
			if capture.Quality == 0 {
				capture.Quality = quality
			}
			if h.Portraits != nil && capture.PortraitRef == "" {
				key := "portraits/" + uuid.NewString() + ".jpg"
				contentType := http.DetectContentType(data)
				if err := h.Portraits.PutObject(c.Request.Context(), key, data, contentType); err != nil {
					slog.Warn("store portrait", "error", err)
				} else {
					capture.PortraitRef = key
				}
			}
		}
		out = append(out, capture)
	}
	return out, true
}

func (h *IdentityHandler) embed(c *gin.Context, data []byte) ([]float32, float64, bool) {
	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "face embedding not available"})
		return nil, 0, false
	}
	emb, quality, err := h.EmbedFn(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "failed to extract face: " + err.Error()})
		return nil, 0, false
	}
	return emb, quality, true
}

// writeError maps gallery errors to status codes. Enrollment rejections keep
// their message verbatim.
func writeError(c *gin.Context, err error) {
	var enrollErr *gallery.EnrollError
	switch {
	case errors.As(err, &enrollErr):
		status := http.StatusBadRequest
		if enrollErr.Reason == gallery.ReasonDuplicateRef || enrollErr.Reason == gallery.ReasonDuplicateFace {
			status = http.StatusConflict
		}
		c.JSON(status, dto.ErrorResponse{Error: enrollErr.Message, Reason: string(enrollErr.Reason)})
	case errors.Is(err, gallery.ErrIdentityNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
