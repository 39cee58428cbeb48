package knowledge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"knowledge-backend/internal/shared/server/middleware"
	"knowledge-backend/internal/shared/server/respond"
)

// QueryEmbedder turns a search query into an embedding vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Handler exposes knowledge base read endpoints.
type Handler struct {
	Repo     Repo
	Embedder QueryEmbedder
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo, embedder QueryEmbedder) *Handler {
	return &Handler{Repo: repo, Embedder: embedder}
}

// RegisterRoutes attaches knowledge routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/knowledge", h.listEntries)
	rg.GET("/knowledge/search", h.searchEntries)
	rg.GET("/knowledge/:id", h.getEntry)
}

func (h *Handler) getEntry(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	entryID := c.Param("id")
	if entryID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "entry id is required", nil)
		return
	}
	c.Set("entryId", entryID)

	entry, err := h.Repo.GetByID(c.Request.Context(), userID, entryID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "knowledge entry not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch knowledge entry", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, entry)
}

func (h *Handler) listEntries(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit, offset := pageParams(c)
	entries, err := h.Repo.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list knowledge entries", nil)
		return
	}

	respond.JSON(c, http.StatusOK, listResponse(entries))
}

func (h *Handler) searchEntries(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "query is required", nil)
		return
	}
	if h.Embedder == nil {
		respond.Error(c, http.StatusServiceUnavailable, "search_unavailable", "semantic search is not configured", nil)
		return
	}

	limit, _ := pageParams(c)
	vec, err := h.Embedder.Embed(c.Request.Context(), query)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "embedding_failed", "failed to embed search query", nil)
		return
	}

	entries, err := h.Repo.SearchSimilar(c.Request.Context(), userID, vec, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to search knowledge entries", nil)
		return
	}

	respond.JSON(c, http.StatusOK, listResponse(entries))
}

func pageParams(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func listResponse(entries []Entry) []gin.H {
	resp := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		item := gin.H{
			"id":          e.ID,
			"title":       e.Title,
			"contentType": e.ContentType,
			"language":    e.Language,
			"keywords":    e.Keywords,
			"confidence":  e.Confidence,
			"status":      e.Status,
			"createdAt":   e.CreatedAt,
		}
		if e.SourceURL != "" {
			item["sourceUrl"] = e.SourceURL
		}
		resp = append(resp, item)
	}
	return resp
}
