package system

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Version is reported by /health and the root descriptor. Overridden at
// build time with -ldflags "-X dispatch-gateway/handlers/system.Version=...".
var Version = "1.0.0"

type (
	HealthResponse struct {
		Status      string    `json:"status"`
		Timestamp   time.Time `json:"timestamp"`
		Environment string    `json:"environment"`
		Version     string    `json:"version"`
	}

	DescriptorResponse struct {
		Message   string            `json:"message"`
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
)

func HandleHealth(environment string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, HealthResponse{
			Status:      "OK",
			Timestamp:   time.Now().UTC(),
			Environment: environment,
			Version:     Version,
		})
	}
}

// HandleDescriptor lists the entry points of the gateway.
func HandleDescriptor(apiPrefix string) http.HandlerFunc {
	endpoints := map[string]string{
		"health":    "/health",
		"metrics":   "/metrics",
		"auth":      apiPrefix + "/auth",
		"users":     apiPrefix + "/users",
		"services":  apiPrefix + "/services",
		"trucks":    apiPrefix + "/trucks",
		"messages":  apiPrefix + "/messages",
		"pickups":   apiPrefix + "/pickups",
		"branches":  apiPrefix + "/branches",
		"bookings":  apiPrefix + "/bookings",
		"locations": apiPrefix + "/locations",
		"analytics": apiPrefix + "/analytics",
		"dashboard": apiPrefix + "/dashboard",
		"socket":    "/socket.io/",
	}

	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, DescriptorResponse{
			Message:   "Vehicle service dispatch API",
			Version:   Version,
			Endpoints: endpoints,
		})
	}
}
