package utils

import (
	"errors"

	"walletledger/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ClaimsKey is the fiber Locals key the auth middleware stores claims under.
const ClaimsKey = "claims"

// ErrNoCaller is returned when a request carries no usable caller identity.
var ErrNoCaller = errors.New("no authenticated caller")

// SetUserClaims attaches verified claims to the request.
func SetUserClaims(c *fiber.Ctx, claims *models.UserClaims) {
	c.Locals(ClaimsKey, claims)
}

// GetUserClaims returns the claims set by the auth middleware.
func GetUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals(ClaimsKey).(*models.UserClaims)
	if !ok || claims == nil {
		return nil, ErrNoCaller
	}
	return claims, nil
}

// CallerID is the wallet owner every /api/wallet route acts on.
func CallerID(c *fiber.Ctx) (uint, error) {
	claims, err := GetUserClaims(c)
	if err != nil {
		return 0, err
	}
	if claims.UserID == 0 {
		return 0, ErrNoCaller
	}
	return claims.UserID, nil
}
