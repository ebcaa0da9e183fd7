package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims this service reads. Tokens are issued
// elsewhere and signed with the shared HS256 secret.
type Claims struct {
	Email string `json:"email"`
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

type TokenVerifier struct {
	secret []byte
	leeway time.Duration
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
}

// Verify checks signature and expiry and returns the caller the token
// describes.
func (v *TokenVerifier) Verify(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithLeeway(v.leeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if NormalizeEmail(claims.Email) == "" {
		return Principal{}, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	return NewPrincipal(claims.Email, ParseRoles(claims.Roles)), nil
}
