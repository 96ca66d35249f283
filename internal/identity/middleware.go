package identity

import (
	"log/slog"
	"net/http"

	"gatekeeper/pkg/platform/httputil"
	request "gatekeeper/pkg/platform/middleware/request"
)

// Middleware resolves the caller through provider and stores it in the
// request context. Requests without a usable identity stop here with 401.
func Middleware(provider Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, err := provider.Identify(r)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated request",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
