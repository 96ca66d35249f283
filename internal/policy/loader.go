package policy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default roles used when no policy file is configured.
const (
	RoleAdmin        = "admin"
	RoleJuniorIntern = "junior_intern"
)

type fileFormat struct {
	Roles map[string]roleEntry `yaml:"roles"`
}

type roleEntry struct {
	// Pointer so an omitted key defaults to redaction on.
	PIIRedactionEnabled *bool          `yaml:"pii_redaction_enabled"`
	RateLimit           *rateLimitYAML `yaml:"rate_limit"`
	Aliases             []string       `yaml:"aliases"`
}

type rateLimitYAML struct {
	RequestsPerHour *int `yaml:"requests_per_hour"`
	MaxRequests     *int `yaml:"max_requests"`
	WindowSeconds   *int `yaml:"window_seconds"`
}

// Parse builds a Registry from the YAML role table:
//
//	roles:
//	  admin:
//	    pii_redaction_enabled: false
//	  junior_intern:
//	    pii_redaction_enabled: true
//	    rate_limit: {requests_per_hour: 10, window_seconds: 3600}
//	    aliases: [intern]
func Parse(data []byte) (*Registry, error) {
	var doc fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode policy yaml: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("policy file declares no roles")
	}

	policies := make([]Policy, 0, len(doc.Roles))
	for role, entry := range doc.Roles {
		p := Policy{
			Role:             role,
			RedactionEnabled: true,
			Aliases:          entry.Aliases,
		}
		if entry.PIIRedactionEnabled != nil {
			p.RedactionEnabled = *entry.PIIRedactionEnabled
		}
		if entry.RateLimit != nil {
			spec, err := entry.RateLimit.spec()
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			p.RateLimit = &spec
		}
		policies = append(policies, p)
	}
	return NewRegistry(policies)
}

func (r rateLimitYAML) spec() (RateLimitSpec, error) {
	spec := RateLimitSpec{WindowSeconds: 3600}
	switch {
	case r.MaxRequests != nil && r.RequestsPerHour != nil:
		return spec, fmt.Errorf("rate_limit sets both max_requests and requests_per_hour")
	case r.MaxRequests != nil:
		spec.MaxRequests = *r.MaxRequests
	case r.RequestsPerHour != nil:
		spec.MaxRequests = *r.RequestsPerHour
	default:
		return spec, fmt.Errorf("rate_limit requires max_requests")
	}
	if r.WindowSeconds != nil {
		spec.WindowSeconds = *r.WindowSeconds
	}
	return spec, spec.validate()
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in table: admin sees raw content without quota,
// junior_intern is redacted and limited to 10 requests per hour.
func Default() *Registry {
	r, err := NewRegistry([]Policy{
		{Role: RoleAdmin, RedactionEnabled: false},
		{
			Role:             RoleJuniorIntern,
			RedactionEnabled: true,
			RateLimit:        &RateLimitSpec{MaxRequests: 10, WindowSeconds: 3600},
			Aliases:          []string{"intern"},
		},
	})
	if err != nil {
		panic(err)
	}
	return r
}
