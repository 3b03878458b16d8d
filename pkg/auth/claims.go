package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the typed JWT handed to a wallet after login.
// The address is stored in canonical EIP-55 form.
type AccessTokenClaims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}
