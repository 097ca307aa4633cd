package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

var ErrMissingToken = errors.New("missing bearer token")

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(tokenString string) (domain.Customer, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Customer{}, fmt.Errorf("verify token: %w", err)
	}

	if claims.Subject == "" {
		return domain.Customer{}, errors.New("verify token: missing subject")
	}

	return domain.Customer{ID: claims.Subject, Email: claims.Email}, nil
}

// VerifyRequest reads the bearer token from the Authorization header, falling
// back to the accessToken cookie used by the storefront.
func (v *Verifier) VerifyRequest(r *http.Request) (domain.Customer, error) {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else if c, err := r.Cookie("accessToken"); err == nil {
		token = c.Value
	}

	if token == "" {
		return domain.Customer{}, ErrMissingToken
	}

	return v.Verify(token)
}
