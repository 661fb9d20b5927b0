package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// DefaultTTL is used when TOKEN_TTL_HOURS is not configured.
const DefaultTTL = 24 * time.Hour

type tokenClaims struct {
	UserID           string   `json:"user_id"`
	Email            string   `json:"email"`
	Role             string   `json:"role"`
	TenantID         *string  `json:"tenant_id"`
	VisibleTenantIDs []string `json:"visible_tenant_ids"`
	jwt.RegisteredClaims
}

// Issuer signs bearer tokens carrying the full principal.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue encodes the principal into a signed HS256 token with iat/exp claims.
func (i *Issuer) Issue(p Principal) (string, error) {
	now := i.now().UTC()

	var tenantID *string
	if p.TenantID != "" {
		tenantID = &p.TenantID
	}
	visible := p.VisibleTenantIDs
	if visible == nil {
		visible = []string{}
	}

	claims := tokenClaims{
		UserID:           p.UserID,
		Email:            p.Email,
		Role:             string(p.Role),
		TenantID:         tenantID,
		VisibleTenantIDs: visible,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verifier validates bearer tokens and reconstructs the principal.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns the embedded principal, or ErrTokenExpired/ErrTokenInvalid.
// The signing algorithm is pinned to HS256.
func (v *Verifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrTokenInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrTokenInvalid
	}
	return principalFromClaims(claims)
}

// principalFromClaims enforces the claim shape: user_id must be a UUID, the
// role must be one of the three known roles, tenant_id a UUID when present.
func principalFromClaims(claims *tokenClaims) (Principal, error) {
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return Principal{}, ErrTokenInvalid
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Principal{}, ErrTokenInvalid
	}

	tenantID := ""
	if claims.TenantID != nil && *claims.TenantID != "" {
		if _, err := uuid.Parse(*claims.TenantID); err != nil {
			return Principal{}, ErrTokenInvalid
		}
		tenantID = *claims.TenantID
	}

	return Principal{
		UserID:           claims.UserID,
		Email:            claims.Email,
		Role:             role,
		TenantID:         tenantID,
		VisibleTenantIDs: claims.VisibleTenantIDs,
	}, nil
}
