package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
)

type tokenRevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthConfig defines configuration for session tokens.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	Issuer      string
}

// AuthService validates the session tokens minted after the OAuth sign-in and
// acts as the identity provider for request sessions.
type AuthService struct {
	revocations tokenRevocationStore
	logger      *zap.Logger
	config      AuthConfig
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(revocations tokenRevocationStore, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 12 * time.Hour
	}
	return &AuthService{revocations: revocations, logger: logger, config: config, now: time.Now}
}

// Issue signs a session token for identity.
func (s *AuthService) Issue(identity models.Identity) (string, *models.SessionClaims, error) {
	email := identity.NormalizedEmail()
	if email == "" {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	issuedAt := s.now().UTC()
	claims := &models.SessionClaims{
		Email:       email,
		DisplayName: strings.TrimSpace(identity.DisplayName),
		JobTitle:    strings.TrimSpace(identity.JobTitle),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}
	return signed, claims, nil
}

// ValidateToken parses a session token and checks it has not been revoked.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAuthenticationRequired.Code, appErrors.ErrAuthenticationRequired.Status, "invalid session token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || models.NormalizeEmail(claims.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrAuthenticationRequired, "invalid session token claims")
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "session store unavailable")
		}
		if revoked {
			return nil, appErrors.Clone(appErrors.ErrAuthenticationRequired, "session has ended")
		}
	}

	return claims, nil
}

// Revoke drops the session behind claims so the token can no longer be used.
func (s *AuthService) Revoke(ctx context.Context, claims *models.SessionClaims) error {
	if claims == nil || s.revocations == nil || claims.ID == "" {
		return nil
	}
	ttl := s.config.TokenTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("failed to revoke session token", zap.String("email", claims.Email), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "session store unavailable")
	}
	return nil
}
