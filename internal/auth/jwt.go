package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated identity attached to every request. The
// admin capability is decided at account provisioning and carried in the
// token, never recomputed per request.
type Principal struct {
	ID      string
	Alias   string
	IsAdmin bool
}

var ErrInvalidToken = errors.New("invalid or expired token")

type claims struct {
	Alias string `json:"alias"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies the bearer tokens handed out at login.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Generate issues an HS256 token for the user.
func (t *Tokens) Generate(p Principal) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Alias: p.Alias,
		Admin: p.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	return token.SignedString(t.secret)
}

// Parse validates a token string and returns the principal it carries.
func (t *Tokens) Parse(tokenString string) (Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	return Principal{ID: c.Subject, Alias: c.Alias, IsAdmin: c.Admin}, nil
}
