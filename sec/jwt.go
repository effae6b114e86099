package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims are carried by tokens of back-office operators.
type OperatorClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks RS256 bearer tokens against a set of public keys by kid.
type Verifier struct {
	Issuer string
	keys   map[string]*rsa.PublicKey
}

func NewVerifier(issuer string, jwks *JWKS) (*Verifier, error) {
	if jwks == nil || len(jwks.Keys) == 0 {
		return nil, errors.New("verifier: no public keys")
	}
	v := &Verifier{Issuer: issuer, keys: make(map[string]*rsa.PublicKey, len(jwks.Keys))}
	for _, k := range jwks.Keys {
		pub, err := k.ToPublicKey()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k.Kid, err)
		}
		v.keys[k.Kid] = pub
	}
	return v, nil
}

func (v *Verifier) Verify(signedToken string) (*OperatorClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(signedToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		pub, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return pub, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SignOperatorToken issues an RS256 token for sub valid for ttl.
func SignOperatorToken(iss string, sub string, scope string, privateKey *rsa.PrivateKey, kid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := OperatorClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(privateKey)
}

func ExtractBearerToken(header string) string {
	const prefix = "Bearer "
	prefixLen := len(prefix)
	if len(header) > prefixLen && header[:prefixLen] == prefix {
		return header[prefixLen:]
	}
	return ""
}
