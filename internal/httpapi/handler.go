package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/fevermarket/catalog-sync/internal/catalog"
	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// isoLocalLayout matches the upstream-provider timestamps and this
// endpoint's query parameters: a civil datetime with no timezone offset.
const isoLocalLayout = "2006-01-02T15:04:05"

// Searcher is satisfied by *catalog.Composer.
type Searcher interface {
	Search(ctx context.Context, fromTS, toTS string) ([]catalog.Event, error)
}

// Handler serves the single GET /search surface (§6).
type Handler struct {
	searcher Searcher
	log      *logger.Logger
}

// NewHandler builds the /search handler.
func NewHandler(searcher Searcher, log *logger.Logger) *Handler {
	return &Handler{searcher: searcher, log: log}
}

// Search implements GET /search?starts_at=...&ends_at=....
func (h *Handler) Search(c *gin.Context) {
	startsAt := c.Query("starts_at")
	endsAt := c.Query("ends_at")

	if startsAt == "" || endsAt == "" {
		c.JSON(http.StatusBadRequest, emptyResponse())
		return
	}

	if _, err := time.Parse(isoLocalLayout, startsAt); err != nil {
		c.JSON(http.StatusBadRequest, emptyResponse())
		return
	}
	if _, err := time.Parse(isoLocalLayout, endsAt); err != nil {
		c.JSON(http.StatusBadRequest, emptyResponse())
		return
	}
	if startsAt > endsAt {
		c.JSON(http.StatusBadRequest, emptyResponse())
		return
	}

	events, err := h.searcher.Search(c.Request.Context(), startsAt, endsAt)
	if err != nil {
		h.log.WithError(err).Error("search request failed")
		c.JSON(http.StatusInternalServerError, emptyResponse())
		return
	}

	c.JSON(http.StatusOK, SearchResponse{Data: SearchData{Events: toDTOs(events)}})
}
