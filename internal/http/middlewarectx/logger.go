package middlewarectx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// HTTPRecorder принимает сведения о выполненном запросе.
type HTTPRecorder interface {
	RecordHTTPRequest(route string, statusCode int, duration time.Duration)
}

// RequestLogger пишет в лог каждый выполненный запрос и передаёт его в recorder.
// recorder может быть nil.
func RequestLogger(log *slog.Logger, recorder HTTPRecorder) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/logger"))
	log.Info("logger middleware enabled")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				elapsed := time.Since(start)

				entry.Info("request completed",
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", elapsed.String()),
				)
				if recorder != nil {
					recorder.RecordHTTPRequest(routePattern(r), status, elapsed)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
