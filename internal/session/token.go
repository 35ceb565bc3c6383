package session

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/practable/livehub/internal/store"
)

// ErrInvalidToken is returned for bearer tokens that fail verification
var ErrInvalidToken = errors.New("token invalid")

// Claims represents the claims carried in a bearer token
type Claims struct {

	// UserID is the store id of the user the token was issued for
	UserID int64 `json:"uid"`

	// Role is either viewer or admin
	Role string `json:"role"`

	Name string `json:"name"`

	jwt.RegisteredClaims
}

// NewClaims returns Claims populated with the supplied information
func NewClaims(audience string, userID int64, role, name string, iat, nbf, exp time.Time) Claims {

	return Claims{
		UserID: userID,
		Role:   role,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			NotBefore: jwt.NewNumericDate(nbf),
			ExpiresAt: jwt.NewNumericDate(exp),
			Audience:  jwt.ClaimStrings{audience},
		},
	}
}

// HasRequiredClaims returns false if the Claims are missing any required elements
func HasRequiredClaims(c Claims) bool {

	if c.UserID == 0 ||
		(c.Role != store.RoleViewer && c.Role != store.RoleAdmin) ||
		len(c.Audience) == 0 ||
		c.ExpiresAt == nil {
		return false
	}
	return true
}

// NewToken returns a signed HS256 JWT for the claims
func NewToken(c Claims, secret string) (string, error) {

	if !HasRequiredClaims(c) {
		return "", errors.New("missing required claims")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)

	return token.SignedString([]byte(secret))
}

// ParseToken verifies a bearer token against secret and audience
func ParseToken(bearer, secret, audience string) (*Claims, error) {

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(bearer, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method was %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	if !token.Valid { //checks iat, nbf, exp
		return nil, ErrInvalidToken
	}

	if !claims.VerifyAudience(audience, true) {
		return nil, fmt.Errorf("%w: aud %v does not match %s", ErrInvalidToken, claims.Audience, audience)
	}

	if !HasRequiredClaims(*claims) {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}

	return claims, nil
}
