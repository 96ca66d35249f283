package testutil

import (
	"net/http"
	"time"

	"gatekeeper/internal/identity"
	"gatekeeper/pkg/requestcontext"
)

// WithIdentity stores the caller in the request context, as identity.Middleware
// would after a successful lookup.
func WithIdentity(req *http.Request, userID, role, department string) *http.Request {
	id := identity.Identity{UserID: userID, Role: role, Department: department}.Normalize()
	return req.WithContext(identity.WithIdentity(req.Context(), id))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithIdentityHeaders sets the trusted gateway headers read by identity.HeaderProvider.
func WithIdentityHeaders(req *http.Request, userID, role, department string) *http.Request {
	req.Header.Set(identity.HeaderUserID, userID)
	req.Header.Set(identity.HeaderUserRole, role)
	if department != "" {
		req.Header.Set(identity.HeaderDepartment, department)
	}
	return req
}
