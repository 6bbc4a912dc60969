package authservice

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

const tokenIssuer = "cybervpn"

type AuthService struct {
	config *config.Config
	logger zerolog.Logger
}

func NewAuthService(config *config.Config, logger zerolog.Logger) IAuthService {
	return &AuthService{
		config: config,
		logger: logger,
	}
}

func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error) {
	jwtSecret := s.config.JWT.Secret
	if jwtSecret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &domain.Claim{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse token")
		return nil, fmt.Errorf("failed to parse token: %v", err)
	}

	if !token.Valid {
		s.logger.Error().Msg("Invalid token")
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*domain.Claim)
	if !ok {
		s.logger.Error().Msg("Invalid claims format")
		return nil, fmt.Errorf("invalid claims format")
	}

	if claims.ExpiresAt < time.Now().Unix() {
		s.logger.Error().Msg("Token expired")
		return nil, fmt.Errorf("token expired")
	}

	if claims.Issuer != tokenIssuer {
		s.logger.Error().Msg("Invalid issuer")
		return nil, fmt.Errorf("invalid issuer")
	}

	return claims, nil
}

func (s *AuthService) GenerateToken(ctx context.Context, userID uuid.UUID, isAdmin bool) (string, error) {
	jwtSecret := s.config.JWT.Secret
	if jwtSecret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return "", fmt.Errorf("JWT secret not configured")
	}

	expirationTime := time.Now().Add(time.Hour * 24)
	claim := &domain.Claim{
		UserID:  userID,
		IsAdmin: isAdmin,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to sign token")
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

// VerifyAPIKey checks a gateway callback key against the configured gateway
// credentials.
func (s *AuthService) VerifyAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return errors.New("invalid API key")
	}

	for _, gw := range s.config.Gateways {
		if gw.APIKey != "" && subtle.ConstantTimeCompare([]byte(gw.APIKey), []byte(apiKey)) == 1 {
			return nil
		}
	}

	return errors.New("invalid API key")
}
