package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims — содержимое токена сессии.
type SessionClaims struct {
	Kind models.PrincipalKind `json:"kind"`
	jwt.RegisteredClaims
}

// Session is a validated token.
type Session struct {
	Subject   uuid.UUID
	Kind      models.PrincipalKind
	ExpiresAt time.Time
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs an HS256 token for the principal and returns it with its expiry.
func (s *TokenService) Issue(subject uuid.UUID, kind models.PrincipalKind) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := SessionClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate returns ErrUnauthenticated for an empty token, ErrInvalidToken for a
// token that does not parse or verify, and ErrSessionExpired once exp has passed.
func (s *TokenService) Validate(tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrSessionExpired
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	switch claims.Kind {
	case models.PrincipalUser, models.PrincipalOrganizer:
	default:
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidToken, claims.Kind)
	}

	return &Session{Subject: subject, Kind: claims.Kind, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// IsAuthError reports whether err should be answered with 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionExpired)
}
