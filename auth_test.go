package mockfs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceIssueValidateRevoke(t *testing.T) {
	ts := newTokenService("test-secret")

	token, err := ts.Issue("admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)

	ts.Revoke(token)

	// A revoked token fails even though signature and expiry still hold
	_, err = ts.Validate(token)
	assert.Equal(t, ErrTokenInvalid, err)
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	ts := newTokenService("test-secret")
	other := newTokenService("other-secret")

	token, err := other.Issue("admin")
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.Error(t, err)
}

func TestTokenServiceReset(t *testing.T) {
	ts := newTokenService("")

	t1, err := ts.Issue("a")
	require.NoError(t, err)
	t2, err := ts.Issue("b")
	require.NoError(t, err)

	ts.Reset()

	_, err = ts.Validate(t1)
	assert.Error(t, err)
	_, err = ts.Validate(t2)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	s := New()

	hr := httptest.NewRequest(http.MethodGet, "/x", nil)
	hr.Header.Set("Authorization", "Bearer abc")
	req := &Request{}
	req.reset(s, hr)
	assert.Equal(t, "abc", extractToken(req))

	// Cookie is the fallback
	hr = httptest.NewRequest(http.MethodGet, "/x", nil)
	hr.AddCookie(&http.Cookie{Name: authCookieName, Value: "def"})
	req = &Request{}
	req.reset(s, hr)
	assert.Equal(t, "def", extractToken(req))

	// Header wins over cookie
	hr = httptest.NewRequest(http.MethodGet, "/x", nil)
	hr.Header.Set("Authorization", "Bearer abc")
	hr.AddCookie(&http.Cookie{Name: authCookieName, Value: "def"})
	req = &Request{}
	req.reset(s, hr)
	assert.Equal(t, "abc", extractToken(req))

	hr = httptest.NewRequest(http.MethodGet, "/x", nil)
	req = &Request{}
	req.reset(s, hr)
	assert.Empty(t, extractToken(req))
}

func TestAuthGas(t *testing.T) {
	s := New()

	token, err := s.tokens.Issue("admin")
	require.NoError(t, err)

	h := AuthGas(s.tokens)(func(req *Request, res *Response) error {
		return res.WriteString("ok " + req.Username)
	})

	serve := func(header string) (*httptest.ResponseRecorder, error) {
		hr := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			hr.Header.Set("Authorization", header)
		}

		rec := httptest.NewRecorder()
		req, res := &Request{}, &Response{}
		req.reset(s, hr)
		res.reset(s, rec, req)

		return rec, h(req, res)
	}

	rec, err := serve("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "ok admin", rec.Body.String())

	_, err = serve("")
	assert.Equal(t, ErrTokenInvalid, err)

	_, err = serve("Bearer not-a-token")
	assert.Equal(t, ErrTokenInvalid, err)
}
