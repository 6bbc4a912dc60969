package domain

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// User is the slice of the platform user the billing core needs: identity,
// referral linkage and partner flag. Account management lives elsewhere.
type User struct {
	ID         uuid.UUID `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	ReferrerID string    `json:"referrer_id,omitempty"`
	IsPartner  bool      `json:"is_partner"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Claim struct {
	UserID  uuid.UUID `json:"user_id"`
	IsAdmin bool      `json:"is_admin"`
	jwt.StandardClaims
}
