package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "gatekeeper/pkg/domain-errors"
)

// Claims carries the identity triple inside an access token.
type Claims struct {
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider identifies callers from HMAC-signed bearer tokens. The user ID
// is the token subject.
type JWTProvider struct {
	signingKey []byte
	issuer     string
}

func NewJWTProvider(signingKey, issuer string) *JWTProvider {
	return &JWTProvider{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// IssueToken signs a token for id. Used by tests and local tooling.
func (p *JWTProvider) IssueToken(id Identity, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:       id.Role,
		Department: id.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(p.signingKey)
}

// ValidateToken parses and verifies a signed token.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

func (p *JWTProvider) Identify(r *http.Request) (Identity, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "bearer token required")
	}
	claims, err := p.ValidateToken(token)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{
		UserID:     claims.Subject,
		Role:       claims.Role,
		Department: claims.Department,
	}.Normalize()
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
