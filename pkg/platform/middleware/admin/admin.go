package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	request "gatekeeper/pkg/platform/middleware/request"
)

// RoleFunc extracts the caller's role from the request context.
type RoleFunc func(ctx context.Context) (role string, ok bool)

// RequireRole admits only callers whose role equals privileged (case-insensitive).
// It runs before dispatch and never consults the governance policy table.
func RequireRole(privileged string, roleOf RoleFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, ok := roleOf(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "identity required"))
				return
			}
			if !strings.EqualFold(strings.TrimSpace(role), privileged) {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", request.GetRequestID(ctx),
					"role", role,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Admin access required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
