package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrSessionNotFound = errors.New("session not found or expired")
)

const tokenIssuer = "github.com/temcen/psyrec"

// AuthService exchanges API keys for JWTs and validates them. Sessions are
// tracked in the hot redis instance when one is configured.
type AuthService struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	jwtSecret   []byte
}

func NewAuthService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *AuthService {
	return &AuthService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		jwtSecret:   []byte(cfg.Auth.JWTSecret),
	}
}

// Authenticate validates apiKey and issues a token for clientID, generating
// one when it is nil.
func (s *AuthService) Authenticate(ctx context.Context, apiKey string, clientID *uuid.UUID) (*models.AuthResponse, error) {
	tier, err := s.ValidateAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	if clientID != nil {
		id = *clientID
	}

	token, expiresAt, err := s.GenerateToken(ctx, id, apiKey, tier)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, ClientTier: tier}, nil
}

func (s *AuthService) GenerateToken(ctx context.Context, clientID uuid.UUID, apiKey, tier string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.Auth.TokenTTL)
	claims := &models.JWTClaims{
		ClientID:   clientID,
		APIKey:     apiKey,
		ClientTier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	if s.redisClient != nil {
		err = s.redisClient.Set(ctx, sessionKey(clientID), tokenString, s.config.Auth.TokenTTL).Err()
		if err != nil {
			// token generation still succeeds without redis
			s.logger.WithError(err).Warn("Failed to store session in Redis")
		}
	}

	return tokenString, expiresAt, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if s.redisClient != nil {
		exists, err := s.redisClient.Exists(ctx, sessionKey(claims.ClientID)).Result()
		if err != nil {
			s.logger.WithError(err).Warn("Failed to check session in Redis")
		} else if exists == 0 {
			return nil, ErrSessionNotFound
		}
	}

	return claims, nil
}

func (s *AuthService) RevokeToken(ctx context.Context, clientID uuid.UUID) error {
	if s.redisClient == nil {
		return nil
	}
	if err := s.redisClient.Del(ctx, sessionKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// ValidateAPIKey returns the tier configured for apiKey
func (s *AuthService) ValidateAPIKey(apiKey string) (string, error) {
	if tier, exists := s.config.Auth.APIKeys[apiKey]; exists && apiKey != "" {
		return tier, nil
	}
	return "", ErrInvalidAPIKey
}

func sessionKey(clientID uuid.UUID) string {
	return fmt.Sprintf("session:%s", clientID.String())
}
