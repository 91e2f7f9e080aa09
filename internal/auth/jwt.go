package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is one trading day at the counter. There is no refresh flow;
// operators sign in again at the start of a shift.
const TokenTTL = 12 * time.Hour

const issuer = "tokoledger"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the operator. Name and UserID are copied onto
// transactions as the salesman.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	ShopID uuid.UUID `json:"shop_id"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 access token for a shop operator.
func GenerateToken(secret string, userID, shopID uuid.UUID, name, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		ShopID: shopID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses tokenStr and returns its claims. Every failure wraps
// ErrInvalidToken.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ShopID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing shop", ErrInvalidToken)
	}
	return claims, nil
}
