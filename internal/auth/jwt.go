package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"greendrake/negotiation/internal/utils"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims defines the structure of the JWT claims. PartyID is the user id
// the caller negotiates as.
type Claims struct {
	PartyID string `json:"party_id"`
	jwt.RegisteredClaims
}

// Party returns the caller's party id.
func (c *Claims) Party() (utils.SixID, error) {
	id, err := utils.ParseSixID(c.PartyID)
	if err != nil || id.IsZero() {
		return utils.SixID{}, fmt.Errorf("%w: bad party id", ErrInvalidToken)
	}
	return id, nil
}

// GenerateJWT creates a new JWT for a given party.
func GenerateJWT(partyID utils.SixID, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PartyID: partyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   partyID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
