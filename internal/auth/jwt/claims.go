package jwt

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the validated identity carried into the request context.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string

	ExpiresAt time.Time
	IssuedAt  time.Time

	// Private holds all non-registered claims.
	Private map[string]interface{}
}

// claimsFromToken converts a verified token into Claims.
func claimsFromToken(tok jwt.Token) *Claims {
	return &Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		Audience:  tok.Audience(),
		ExpiresAt: tok.Expiration(),
		IssuedAt:  tok.IssuedAt(),
		Private:   tok.PrivateClaims(),
	}
}
