package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astro-comp/registrar/internal/models"
)

type staticSource struct {
	regs []models.Registration
	err  error
}

func (s staticSource) All(context.Context) iter.Seq2[models.Registration, error] {
	return func(yield func(models.Registration, error) bool) {
		for _, reg := range s.regs {
			if !yield(reg, nil) {
				return
			}
		}
		if s.err != nil {
			yield(models.Registration{}, s.err)
		}
	}
}

var fixedNow = time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

func TestSummarize_Empty(t *testing.T) {
	stats, err := Summarize(context.Background(), staticSource{}, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRegistrations)
	assert.Empty(t, stats.Countries)
	assert.NotNil(t, stats.Countries)
	assert.Empty(t, stats.Grades)
	assert.Equal(t, "2025-03-01T12:30:00.000Z", stats.LastUpdated)
}

func TestSummarize_Aggregates(t *testing.T) {
	src := staticSource{regs: []models.Registration{
		{Country: "UK", Grade: 11},
		{Country: "India", Grade: 11},
		{Country: "UK", Grade: 9},
		{Country: "Brazil", Grade: 12},
	}}

	stats, err := Summarize(context.Background(), src, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRegistrations)
	assert.Equal(t, []string{"Brazil", "India", "UK"}, stats.Countries)
	assert.Equal(t, map[string]int{"9": 1, "11": 2, "12": 1}, stats.Grades)
}

func TestSummarize_ScanError(t *testing.T) {
	_, err := Summarize(context.Background(), staticSource{err: errors.New("boom")}, fixedNow)
	assert.Error(t, err)
}

func TestHandler_Stats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(staticSource{regs: []models.Registration{{Country: "UK", Grade: 10}}}, nil)
	h.now = func() time.Time { return fixedNow }

	r := gin.New()
	r.GET("/api/stats", h.Stats)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool         `json:"success"`
		Data    models.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.TotalRegistrations)
	assert.Equal(t, []string{"UK"}, body.Data.Countries)
	assert.Equal(t, map[string]int{"10": 1}, body.Data.Grades)
}

func TestHandler_StatsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(staticSource{err: errors.New("open /data/registrations.csv: denied")}, nil)

	r := gin.New()
	r.GET("/api/stats", h.Stats)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "/data/")
}
