// Package logging provides structured HTTP request logging middleware.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// quietPaths are logged at debug level so probes do not flood the log
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware returns an HTTP middleware that logs one structured line per
// request: request_id, method, path, status, bytes, duration and client_ip.
// Server errors are logged at warn level. Run it after middleware.RealIP so
// client_ip is the forwarded address.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case status >= http.StatusInternalServerError:
					level = slog.LevelWarn
				case quietPaths[r.URL.Path]:
					level = slog.LevelDebug
				}

				logger.LogAttrs(context.Background(), level, "request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(start).String()),
					slog.String("client_ip", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
