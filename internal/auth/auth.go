package auth

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/clipforge/clipforge/internal/config"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	JWTAuthentication  string = "jwt"
	NoneAuthentication string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case JWTAuthentication:
		if authConfig.JwkCertURL == "" {
			return nil, fmt.Errorf("jwt authentication requires CLIPFORGE_JWK_URL")
		}
		return NewJWTAuthenticator(authConfig.JwkCertURL)
	case NoneAuthentication, "":
		return NewNoneAuthenticator()
	default:
		return nil, fmt.Errorf("unknown authentication type %q", authConfig.AuthenticationType)
	}
}
