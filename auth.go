package mockfs

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// authCookieName is the cookie that carries the bearer token when the
// Authorization header is absent.
const authCookieName = "auth_token"

// tokenTTL is the lifetime of an issued token.
const tokenTTL = 24 * time.Hour

// TokenService issues, validates and revokes HS256 bearer tokens. A token is
// only valid while it is a member of the live set, so revocation wins even
// over a nominally good signature and expiry.
type TokenService struct {
	secret []byte

	mutex sync.Mutex
	live  map[string]struct{}
}

// newTokenService returns a pointer of a new instance of the `TokenService`
// with the secret. An empty secret is replaced by 32 random bytes, which
// makes tokens worthless across restarts.
func newTokenService(secret string) *TokenService {
	ts := &TokenService{
		live: map[string]struct{}{},
	}

	if secret != "" {
		ts.secret = []byte(secret)
	} else {
		ts.secret = make([]byte, 32)
		rand.Read(ts.secret)
	}

	return ts
}

// SetSecret replaces the signing secret of the ts. Route config may carry a
// secret that only becomes known at build time.
func (ts *TokenService) SetSecret(secret string) {
	if secret == "" {
		return
	}

	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.secret = []byte(secret)
}

// Issue signs a token for the username and records it in the live set.
func (ts *TokenService) Issue(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})

	ts.mutex.Lock()
	secret := ts.secret
	ts.mutex.Unlock()

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	ts.mutex.Lock()
	ts.live[signed] = struct{}{}
	ts.mutex.Unlock()

	return signed, nil
}

// Validate verifies the signature, the expiry and the live-set membership of
// the token and returns the username it was issued for.
func (ts *TokenService) Validate(token string) (string, error) {
	ts.mutex.Lock()
	_, alive := ts.live[token]
	secret := ts.secret
	ts.mutex.Unlock()

	if !alive {
		return "", ErrTokenInvalid
	}

	parsed, err := jwt.Parse(
		token,
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrTokenInvalid
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrTokenInvalid
	}

	return sub, nil
}

// Revoke removes the token from the live set.
func (ts *TokenService) Revoke(token string) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	delete(ts.live, token)
}

// Reset clears the live set. It runs on shutdown.
func (ts *TokenService) Reset() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.live = map[string]struct{}{}
}

// extractToken pulls the candidate bearer token out of the req: the
// Authorization header wins, the auth cookie is the fallback. The request
// body is never touched.
func extractToken(req *Request) string {
	if auth := req.Header.Get("Authorization"); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
			return strings.TrimSpace(auth[7:])
		}
	}

	return req.Cookie(authCookieName)
}

// AuthGasConfig defines the config for the auth gas.
type AuthGasConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// Tokens is the service that validates candidate tokens.
	// Required.
	Tokens *TokenService
}

// fill keeps all the fields of the `AuthGasConfig` have value.
func (c *AuthGasConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = defaultSkipper
	}
	if c.Tokens == nil {
		panic("mockfs: auth gas requires a token service")
	}
}

// AuthGas returns a gas that gates protected routes on a valid non-revoked
// token from the ts. On success the username is attached to the request; on
// failure the request is refused with a 401 without reading its body.
func AuthGas(ts *TokenService) Gas {
	return AuthGasWithConfig(AuthGasConfig{Tokens: ts})
}

// AuthGasWithConfig returns an auth gas from the config.
// See: `AuthGas()`.
func AuthGasWithConfig(config AuthGasConfig) Gas {
	config.fill()

	return func(next Handler) Handler {
		return func(req *Request, res *Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			token := extractToken(req)
			if token == "" {
				return ErrTokenInvalid
			}

			username, err := config.Tokens.Validate(token)
			if err != nil {
				return ErrTokenInvalid
			}

			req.Username = username

			return next(req, res)
		}
	}
}
