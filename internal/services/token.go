package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type claim values. Access tokens carry no type claim; refresh and
// verification tokens are explicitly typed so one kind cannot stand in for
// another.
const (
	TokenTypeAccess  = ""
	TokenTypeRefresh = "refresh"
	TokenTypeVerify  = "verify"
)

type tokenClaims struct {
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed HS256 JWT for the given user and token type.
func IssueToken(secret []byte, userID int, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a token of the expected type and returns its subject.
// Returns ErrTokenExpired for structurally valid but expired tokens and
// ErrInvalidToken for everything else.
func ParseToken(secret []byte, tokenString, wantType string) (int, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.TokenType == wantType {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}
	if !token.Valid || claims.TokenType != wantType {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
