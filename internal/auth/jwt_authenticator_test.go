package auth_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
)

var _ = Describe("jwt authentication", func() {
	Context("authenticate", func() {
		It("successfully validates the token", func() {
			sToken, keyFn := generateToken("alice", "acme", time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			user, err := authenticator.Authenticate(sToken)
			Expect(err).To(BeNil())
			Expect(user.Username).To(Equal("alice"))
			Expect(user.Organization).To(Equal("acme"))
		})

		It("fails to authenticate -- expired token", func() {
			sToken, keyFn := generateToken("alice", "acme", time.Now().Add(-time.Minute))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to authenticate -- no subject", func() {
			sToken, keyFn := generateToken("", "acme", time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to authenticate -- wrong signing method", func() {
			sToken, keyFn := generateTokenWrongSigningMethod()
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})
	})

	Context("middleware", func() {
		It("successfully authenticates", func() {
			sToken, keyFn := generateToken("alice", "acme", time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			h := &handler{}
			ts := httptest.NewServer(authenticator.Authenticator(h))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			Expect(err).To(BeNil())
			req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", sToken))

			resp, rerr := http.DefaultClient.Do(req)
			Expect(rerr).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(h.user.Username).To(Equal("alice"))
		})

		It("rejects a request without a token", func() {
			_, keyFn := generateToken("alice", "acme", time.Now().Add(time.Hour))
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			ts := httptest.NewServer(authenticator.Authenticator(&handler{}))
			defer ts.Close()

			resp, rerr := http.Get(ts.URL)
			Expect(rerr).To(BeNil())
			Expect(resp.StatusCode).To(Equal(401))
		})

		It("rejects an invalid token", func() {
			sToken, keyFn := generateTokenWrongSigningMethod()
			authenticator, err := auth.NewJWTAuthenticatorWithKeyFn(keyFn)
			Expect(err).To(BeNil())

			ts := httptest.NewServer(authenticator.Authenticator(&handler{}))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			Expect(err).To(BeNil())
			req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", sToken))

			resp, rerr := http.DefaultClient.Do(req)
			Expect(rerr).To(BeNil())
			Expect(resp.StatusCode).To(Equal(401))
		})
	})
})

var _ = Describe("none authentication", func() {
	It("attaches the development user", func() {
		authenticator, err := auth.NewAuthenticator(config.Auth{AuthenticationType: auth.NoneAuthentication})
		Expect(err).To(BeNil())

		h := &handler{}
		ts := httptest.NewServer(authenticator.Authenticator(h))
		defer ts.Close()

		resp, rerr := http.Get(ts.URL)
		Expect(rerr).To(BeNil())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(h.user.Username).To(Equal(auth.DevUsername))
	})

	It("refuses an unknown authentication type", func() {
		_, err := auth.NewAuthenticator(config.Auth{AuthenticationType: "ldap"})
		Expect(err).ToNot(BeNil())
	})
})

type handler struct {
	user auth.User
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.user = auth.MustHaveUser(r.Context())
	w.WriteHeader(200)
}

func generateToken(subject, orgID string, expireAt time.Time) (string, func(t *jwt.Token) (any, error)) {
	type TokenClaims struct {
		OrgID string `json:"org_id"`
		jwt.RegisteredClaims
	}

	claims := TokenClaims{
		orgID,
		jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    "test",
			Subject:   subject,
			ID:        "1",
		},
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).To(BeNil())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	ss, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return ss, func(t *jwt.Token) (any, error) {
		return privateKey.Public(), nil
	}
}

func generateTokenWrongSigningMethod() (string, func(t *jwt.Token) (any, error)) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Subject:   "alice",
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).To(BeNil())

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	ss, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return ss, func(t *jwt.Token) (any, error) {
		return privateKey.Public(), nil
	}
}
