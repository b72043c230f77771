package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the uniform JSON error body of the gateway.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NotFound answers unmatched routes, echoing the requested path.
func NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{
		Error:   "Not Found",
		Message: fmt.Sprintf("Route %s not found", r.URL.RequestURI()),
	})
}

// MethodNotAllowed answers known routes hit with an unsupported method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, ErrorResponse{
		Error:   "Method Not Allowed",
		Message: fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path),
	})
}

// InternalError writes the generic failure body. The cause is logged, never sent.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithFields(logrus.Fields{
		"error":      err,
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": chimw.GetReqID(r.Context()),
	}).Error("Request failed")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Error: "Internal Server Error"})
}

// Recoverer turns a panicking handler into a generic 500 so a single request
// failure never takes the process down.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logrus.WithField("stack", string(debug.Stack())).Debug("Recovered panic")
			InternalError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
