package authservice

import (
	"context"

	"github.com/google/uuid"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

type IAuthService interface {
	VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error)
	GenerateToken(ctx context.Context, userID uuid.UUID, isAdmin bool) (string, error)
	VerifyAPIKey(ctx context.Context, apiKey string) error
}
