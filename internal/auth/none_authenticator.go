package auth

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DevUsername     = "dev-user"
	DevOrganization = "internal"
)

// NoneAuthenticator attaches a fixed identity to every request.
type NoneAuthenticator struct{}

func NewNoneAuthenticator() (*NoneAuthenticator, error) {
	return &NoneAuthenticator{}, nil
}

func (n *NoneAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := User{
			Username:     DevUsername,
			Organization: DevOrganization,
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"org_id": DevOrganization,
			"sub":    DevUsername,
		})
		token.Raw = "fake-raw-token"
		user.Token = token

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
