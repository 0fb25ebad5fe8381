package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"talentvault/internal/api/middleware"
	"talentvault/internal/errcode"
	"talentvault/internal/records"
	"talentvault/internal/session"
)

// CandidateHandler serves candidate CRUD, search and dashboard stats.
type CandidateHandler struct {
	store  *records.Store
	cache  *session.Cache
	logger *slog.Logger
}

// NewCandidateHandler builds the candidate handler.
func NewCandidateHandler(store *records.Store, cache *session.Cache, logger *slog.Logger) *CandidateHandler {
	return &CandidateHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Create inserts a new candidate. A duplicate email is a conflict the client
// can resolve by calling Update instead.
func (h *CandidateHandler) Create(c *gin.Context) {
	var candidate records.Candidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if candidate.Name == "" || candidate.Email == "" {
		BadRequest(c, "name and email are required")
		return
	}

	created, err := h.store.Insert(c.Request.Context(), candidate)
	if err != nil {
		if errors.Is(err, records.ErrDuplicateEmail) {
			Conflict(c, errcode.DuplicateEmail, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("insert candidate failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.purgeSessionCache(c)
	c.JSON(http.StatusCreated, created)
}

// Update replaces an existing candidate's fields, targeted by email.
func (h *CandidateHandler) Update(c *gin.Context) {
	var candidate records.Candidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if candidate.Email == "" {
		BadRequest(c, "email is required")
		return
	}

	updated, err := h.store.Update(c.Request.Context(), candidate)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("update candidate failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.purgeSessionCache(c)
	c.JSON(http.StatusOK, updated)
}

// Get returns one candidate by exact email.
func (h *CandidateHandler) Get(c *gin.Context) {
	email := c.Param("email")
	candidate, err := h.store.GetByEmail(c.Request.Context(), email)
	if err != nil {
		middleware.LoggerFromContext(c).Error("get candidate failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if candidate == nil {
		NotFound(c, "candidate not found")
		return
	}
	c.JSON(http.StatusOK, candidate)
}

// Delete removes a candidate by email.
func (h *CandidateHandler) Delete(c *gin.Context) {
	email := c.Param("email")
	if err := h.store.Delete(c.Request.Context(), email); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("delete candidate failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.purgeSessionCache(c)
	c.Status(http.StatusOK)
}

// Search runs a conjunctive filter. Results are cached per session under a
// digest of the criteria; the cache only ever short-circuits identical
// repeat searches within one session.
func (h *CandidateHandler) Search(c *gin.Context) {
	var criteria records.SearchCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sessionID, _ := middleware.SessionFromContext(c)
	cacheName := searchCacheName(criteria)
	if cached, ok := h.cache.Get(c.Request.Context(), sessionID, cacheName); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	results := h.store.Search(c.Request.Context(), criteria)
	payload, err := json.Marshal(gin.H{"results": results, "count": len(results)})
	if err != nil {
		Internal(c, "internal error")
		return
	}

	h.cache.Set(c.Request.Context(), sessionID, cacheName, payload)
	c.Data(http.StatusOK, "application/json", payload)
}

// Stats serves the dashboard aggregates, cached per session.
func (h *CandidateHandler) Stats(c *gin.Context) {
	sessionID, _ := middleware.SessionFromContext(c)
	if cached, ok := h.cache.Get(c.Request.Context(), sessionID, "stats"); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	stats := h.store.DashboardStats(c.Request.Context())
	payload, err := json.Marshal(stats)
	if err != nil {
		Internal(c, "internal error")
		return
	}

	h.cache.Set(c.Request.Context(), sessionID, "stats", payload)
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *CandidateHandler) purgeSessionCache(c *gin.Context) {
	if sessionID, _ := middleware.SessionFromContext(c); sessionID != "" {
		h.cache.Purge(c.Request.Context(), sessionID)
	}
}

func searchCacheName(criteria records.SearchCriteria) string {
	raw, _ := json.Marshal(criteria)
	sum := sha256.Sum256(raw)
	return "search:" + hex.EncodeToString(sum[:8])
}
