package http

import (
	"context"
	"net/http"
	"time"

	"scadenze/internal/core"
	applog "scadenze/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports 503 while the store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// fail writes the response for err and logs anything that is not the
// client's fault.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if StatusFor(err) == http.StatusInternalServerError {
		s.records.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", ""))
	}
	ErrorFor(err).Write(w)
}

// pathDate reads a YYYY-MM-DD path segment.
func pathDate(r *http.Request, name string) (core.Date, error) {
	d, err := core.ParseDate(r.PathValue(name))
	if err != nil {
		return core.Date{}, badRequest("invalid "+name+" in path", err)
	}
	return d, nil
}

// listBody wraps collections so the response is always an object.
type listBody[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listBody[T] {
	if items == nil {
		items = []T{}
	}
	return listBody[T]{Items: items, Count: len(items)}
}
