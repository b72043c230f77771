package middleware

import (
	"net/http"
	"strings"

	"dispatch-gateway/core"
	"dispatch-gateway/metrics"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// AuthJWT rejects requests without a valid bearer token and stores the
// resolved actor in the request context.
func AuthJWT(validator core.TokenValidator, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, m, "Authorization header is required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				unauthorized(w, r, m, "Authorization header format must be Bearer {token}")
				return
			}

			actor, err := validator.Validate(parts[1])
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Debug("Rejected bearer token")
				unauthorized(w, r, m, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(core.WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, m *metrics.Metrics, msg string) {
	m.Unauthorized()
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": msg})
}
