// Package auth provides bearer-token issuance and validation for
// request-scope resolution.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the elevated role with unrestricted branch access.
const RoleAdmin = "admin"

// RoleCustomer never acquires branch context.
const RoleCustomer = "customer"

// Claims is the set of custom claims stored inside an access token.
type Claims struct {
	UserID  snowflake.ID  `json:"uid,string"`
	Role    string        `json:"role"`
	StoreID *snowflake.ID `json:"store_id,string,omitempty"`
	jwt.RegisteredClaims
}

// Admin reports whether the caller holds the elevated role.
func (c *Claims) Admin() bool { return c.Role == RoleAdmin }

// IssueToken creates and signs a new access token.
func IssueToken(userID snowflake.ID, role string, storeID *snowflake.ID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		Role:    role,
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "tindahan",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token string and returns its Claims.
// Returns an error if the token is invalid, expired, or signed with a
// different key.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
