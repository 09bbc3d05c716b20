package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbilling/backend/internal/domain/catalog"
)

func newPlanRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/api/v1")
	NewPlanHandler(catalog.DefaultCatalog()).RegisterRoutes(api)
	return engine
}

func TestListPlans(t *testing.T) {
	w := httptest.NewRecorder()
	newPlanRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []PlanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)

	byID := make(map[string]PlanResponse, len(resp.Data))
	for _, plan := range resp.Data {
		byID[plan.ID] = plan
	}

	starter := byID["starter"]
	assert.Equal(t, int64(2900), starter.Price)
	assert.Equal(t, int64(1000), starter.Quota)
	assert.False(t, starter.Unlimited)
	assert.Equal(t, 14, starter.TrialDays)

	enterprise := byID["enterprise"]
	assert.True(t, enterprise.Unlimited)
	assert.Zero(t, enterprise.Quota)
}

func TestGetPlan(t *testing.T) {
	t.Run("returns a known plan", func(t *testing.T) {
		w := httptest.NewRecorder()
		newPlanRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans/professional", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data PlanResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Professional", resp.Data.Name)
		assert.Equal(t, "month", resp.Data.Interval)
	})

	t.Run("unknown plan returns 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		newPlanRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans/platinum", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
