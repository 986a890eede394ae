package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/triage-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "triage-api"

type JWTService interface {
	GenerateAccessToken(staff *model.Staff) (string, time.Time, error)
	ValidateToken(token string) (*model.TokenClaims, error)
}

type hmacJWT struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService signs HS256 tokens that live for expiry.
func NewJWTService(secret string, expiry time.Duration) (JWTService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &hmacJWT{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

func (s *hmacJWT) GenerateAccessToken(staff *model.Staff) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.expiry)
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   staff.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		StaffID: staff.ID,
		Name:    staff.Name,
		Role:    staff.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *hmacJWT) ValidateToken(token string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
