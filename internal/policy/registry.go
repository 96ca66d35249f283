package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is a read-only role table. Safe for concurrent use without locks.
type Registry struct {
	policies map[string]Policy
	// lookup maps lower-cased role names and aliases to canonical role names.
	lookup map[string]string
}

// NewRegistry validates policies and builds a snapshot. Role names and
// aliases are matched case-insensitively and must be unique.
func NewRegistry(policies []Policy) (*Registry, error) {
	r := &Registry{
		policies: make(map[string]Policy, len(policies)),
		lookup:   make(map[string]string, len(policies)),
	}
	for _, p := range policies {
		p.Role = strings.TrimSpace(p.Role)
		if p.Role == "" {
			return nil, fmt.Errorf("policy with empty role")
		}
		if p.RateLimit != nil {
			if err := p.RateLimit.validate(); err != nil {
				return nil, fmt.Errorf("role %s: %w", p.Role, err)
			}
			spec := *p.RateLimit
			p.RateLimit = &spec
		}
		p.Aliases = append([]string(nil), p.Aliases...)

		for _, name := range append([]string{p.Role}, p.Aliases...) {
			key := normalize(name)
			if key == "" {
				return nil, fmt.Errorf("role %s: empty alias", p.Role)
			}
			if owner, dup := r.lookup[key]; dup {
				return nil, fmt.Errorf("role name %q declared by both %s and %s", name, owner, p.Role)
			}
			r.lookup[key] = p.Role
		}
		r.policies[p.Role] = p
	}
	return r, nil
}

// Resolve returns the policy for role, or *PolicyNotFoundError.
func (r *Registry) Resolve(role string) (Policy, error) {
	canonical, ok := r.lookup[normalize(role)]
	if !ok {
		return Policy{}, &PolicyNotFoundError{Role: role}
	}
	p := r.policies[canonical]
	if p.RateLimit != nil {
		spec := *p.RateLimit
		p.RateLimit = &spec
	}
	return p, nil
}

// Roles returns the canonical role names, sorted.
func (r *Registry) Roles() []string {
	roles := make([]string, 0, len(r.policies))
	for role := range r.policies {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
