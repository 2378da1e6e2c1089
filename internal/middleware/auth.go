package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type authCtxKey int

const authKey authCtxKey = 7

// DevSecret signs tokens when no secret is configured.
const DevSecret = "cracks-dev-secret"

// Claims carry the signature of the visitor's access key.
type Claims struct {
	Sig string `json:"sig"`
	jwt.RegisteredClaims
}

// Authenticator verifies visitor tokens issued by the access-key service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		secret = DevSecret
	}
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) SignToken(signature string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(signature) == "" {
		return "", errors.New("signature required")
	}
	now := time.Now()
	claims := Claims{Sig: signature, RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(ttl))}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) Parse(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && strings.TrimSpace(c.Sig) != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches the claims to the context when the Authorization header
// carries a valid bearer token. Requests without one pass through anonymous.
func (a *Authenticator) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := a.Parse(tok); err == nil {
				ctx := context.WithValue(r.Context(), authKey, c)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func SignatureFromContext(ctx context.Context) (string, bool) {
	if c, ok := ctx.Value(authKey).(*Claims); ok && c.Sig != "" {
		return c.Sig, true
	}
	return "", false
}
