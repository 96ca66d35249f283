package identity

import "net/http"

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderDepartment = "X-Department"
)

// HeaderProvider trusts identity headers set by an upstream authenticating proxy.
type HeaderProvider struct{}

func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{}
}

func (p *HeaderProvider) Identify(r *http.Request) (Identity, error) {
	id := Identity{
		UserID:     r.Header.Get(HeaderUserID),
		Role:       r.Header.Get(HeaderUserRole),
		Department: r.Header.Get(HeaderDepartment),
	}.Normalize()
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
