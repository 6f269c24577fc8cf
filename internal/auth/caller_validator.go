package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCallerToken = errors.New("caller auth: token required")
	ErrInvalidCallerToken = errors.New("caller auth: invalid token")
	ErrExpiredCallerToken = errors.New("caller auth: token expired")
)

// CallerValidatorConfig describes how caller tokens are validated.
type CallerValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	Clock         func() time.Time
}

// CallerValidator validates HS256 caller tokens minted by CallerIssuer.
type CallerValidator struct {
	signingSecret []byte
	issuer        string
	clock         func() time.Time
}

// NewCallerValidator constructs a validator with the provided configuration.
func NewCallerValidator(cfg CallerValidatorConfig) (*CallerValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CallerValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		clock:         clock,
	}, nil
}

// ValidateToken validates the token and returns its subject.
func (v *CallerValidator) ValidateToken(tokenString string) (string, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return "", ErrMissingCallerToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidCallerToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(CallerAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredCallerToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidCallerToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return "", ErrInvalidCallerToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errMissingSubjectClaim
	}
	return claims.Subject, nil
}
