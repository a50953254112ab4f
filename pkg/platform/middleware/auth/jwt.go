package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "docbridge/pkg/domain-errors"
)

const clockSkew = 30 * time.Second

// HMACValidator validates and issues HS256 access tokens.
type HMACValidator struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewHMACValidator builds a validator. Empty issuer or audience are not checked.
func NewHMACValidator(signingKey, issuer, audience string) (*HMACValidator, error) {
	if len(signingKey) < 32 {
		return nil, errors.New("jwt signing key must be at least 32 bytes")
	}
	return &HMACValidator{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}, nil
}

// Issue signs a token for subject. Used by operators and tests; the service
// itself does not log anyone in.
func (v *HMACValidator) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return &Claims{Subject: claims.Subject, JTI: claims.ID}, nil
}
