// Package identity resolves callers to a stable subject using tokens issued
// by an external identity provider. Lumina verifies tokens; it never issues
// them. Requests without a valid token proceed anonymously and are metered by
// network origin instead.
package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity fields Lumina consumes from an IdP token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates externally issued HS256 tokens against a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a token, returning its claims. The subject
// claim is required; it is the stable rate-limit and ownership key.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return nil, fmt.Errorf("parsing identity token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid identity token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("identity token has no subject")
	}

	return claims, nil
}
