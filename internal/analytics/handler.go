package analytics

import (
	"context"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/internal/models"
	"github.com/astro-comp/registrar/pkg/response"
)

// Source is the registration log as read by the stats endpoint.
type Source interface {
	All(ctx context.Context) iter.Seq2[models.Registration, error]
}

// Summarize aggregates the whole log in one pass. Countries are distinct and
// sorted; grades are keyed by their decimal string.
func Summarize(ctx context.Context, src Source, now time.Time) (*models.Stats, error) {
	stats := &models.Stats{
		Countries:   []string{},
		Grades:      map[string]int{},
		LastUpdated: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	seen := make(map[string]struct{})
	for reg, err := range src.All(ctx) {
		if err != nil {
			return nil, err
		}
		stats.TotalRegistrations++
		if reg.Country != "" {
			if _, ok := seen[reg.Country]; !ok {
				seen[reg.Country] = struct{}{}
				stats.Countries = append(stats.Countries, reg.Country)
			}
		}
		if reg.Grade != 0 {
			stats.Grades[strconv.Itoa(reg.Grade)]++
		}
	}
	slices.Sort(stats.Countries)
	return stats, nil
}

// Handler serves GET /api/stats.
type Handler struct {
	src    Source
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a stats handler over src.
func NewHandler(src Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{src: src, logger: logger, now: time.Now}
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := Summarize(c.Request.Context(), h.src, h.now())
	if err != nil {
		h.logger.Error("GET /api/stats", zap.Error(err))
		response.Internal(c, "Failed to fetch statistics", "An internal server error occurred. Please try again later.")
		return
	}
	response.OK(c, stats)
}
