package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/clock"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
)

// Actor is the authenticated caller. ID is opaque to the rest of the system.
type Actor struct {
	ID   string
	Role appointment.Role
}

type Claims struct {
	Role appointment.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenService(secret, issuer string, ttl time.Duration, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.System()
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  clk,
	}
}

func validRole(r appointment.Role) bool {
	switch r {
	case appointment.RolePatient, appointment.RoleDoctor, appointment.RoleAdmin:
		return true
	}
	return false
}

// Issue signs a token for actor.
func (s *TokenService) Issue(actor Actor) (string, error) {
	if actor.ID == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	if !validRole(actor.Role) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, actor.Role)
	}

	now := s.clock.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the actor it names.
func (s *TokenService) Parse(raw string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Actor{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	if !validRole(claims.Role) {
		return Actor{}, fmt.Errorf("%w: %q", ErrInvalidRole, claims.Role)
	}

	return Actor{ID: claims.Subject, Role: claims.Role}, nil
}
