package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/utils/errs"
)

// LoggingMiddleware returns a middleware that logs HTTP requests and puts the logger into the request context
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			logger := ctxlog.From(ctx).With("request_id", reqID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctxlog.With(r.Context(), logger)))
		})
	}
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		// Can't get context here, so use background context
		ctxlog.From(context.Background()).Error("Failed to encode error response", "error", err)
	}
}

// handleError maps the error tag to a status code and writes it. Server side failures are reported.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		errs.Handle(r.Context(), err)
	}
	writeError(w, err, status)
}

func statusOf(err error) int {
	switch {
	case goerr.HasTag(err, types.ErrTagInvalidRequest), goerr.HasTag(err, types.ErrTagNotAFile):
		return http.StatusBadRequest
	case goerr.HasTag(err, types.ErrTagNotFound):
		return http.StatusNotFound
	case goerr.HasTag(err, types.ErrTagDuplicateDownload):
		return http.StatusConflict
	case goerr.HasTag(err, types.ErrTagExtractionFailed):
		return http.StatusUnprocessableEntity
	case goerr.HasTag(err, types.ErrTagCatalogFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(err, "invalid JSON body", goerr.T(types.ErrTagInvalidRequest))
	}
	return nil
}
