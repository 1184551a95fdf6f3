package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewStructuredLogger logs one line per request with request and response groups.
// Server errors log at error level, client errors at warn.
func NewStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			// The principal is attached further down the chain, so capture it on the way back.
			var principal *auth.Principal
			r = r.WithContext(withPrincipalSlot(r.Context(), &principal))

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				requestAttrs := []any{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				}
				if reqID := middleware.GetReqID(r.Context()); reqID != "" {
					requestAttrs = append(requestAttrs, slog.String("request_id", reqID))
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					requestAttrs = append(requestAttrs, slog.String("route", rctx.RoutePattern()))
				}
				if principal != nil {
					requestAttrs = append(requestAttrs, slog.String("user_id", principal.UserID))
				}

				responseAttrs := slog.Group("response",
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("latency", time.Since(start).String()),
				)

				switch {
				case status >= 500:
					logger.Error("server error", slog.Group("request", requestAttrs...), responseAttrs)
				case status >= 400:
					logger.Warn("request rejected", slog.Group("request", requestAttrs...), responseAttrs)
				default:
					logger.Info("request completed", slog.Group("request", requestAttrs...), responseAttrs)
				}
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
