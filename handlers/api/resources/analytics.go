package resources

import (
	"net/http"
	"time"

	"dispatch-gateway/core"
	"dispatch-gateway/hub"
	"dispatch-gateway/middleware"

	"github.com/go-chi/render"
)

// StatsSource reports live realtime figures for the dashboard.
type StatsSource interface {
	Stats() hub.Stats
}

type (
	AnalyticsResponse struct {
		Counts      map[string]int `json:"counts"`
		GeneratedAt time.Time      `json:"generatedAt"`
	}

	DashboardResponse struct {
		AnalyticsResponse
		Realtime hub.Stats `json:"realtime"`
	}
)

// HandleAnalytics reports the number of documents per collection.
func HandleAnalytics(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := analytics(r, store)
		if err != nil {
			middleware.InternalError(w, r, err)
			return
		}
		render.JSON(w, r, resp)
	}
}

// HandleDashboard adds the hub connection and room figures to the analytics.
func HandleDashboard(store core.DocumentStore, stats StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := analytics(r, store)
		if err != nil {
			middleware.InternalError(w, r, err)
			return
		}
		render.JSON(w, r, DashboardResponse{AnalyticsResponse: *resp, Realtime: stats.Stats()})
	}
}

func analytics(r *http.Request, store core.DocumentStore) (*AnalyticsResponse, error) {
	counts := make(map[string]int, len(Collections))
	for _, collection := range Collections {
		n, err := store.Count(r.Context(), collection)
		if err != nil {
			return nil, err
		}
		counts[collection] = n
	}
	return &AnalyticsResponse{Counts: counts, GeneratedAt: time.Now().UTC()}, nil
}
