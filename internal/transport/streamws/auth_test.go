package streamws

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth_ValidTokenInAuthorizationHeader(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.IssueToken("user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/stream", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	subject, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestJWTAuth_ValidTokenInQueryParam(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.IssueToken("user-2", time.Now().Add(time.Hour))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil)
	subject, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "user-2", subject)
}

func TestJWTAuth_ExpiredTokenRejected(t *testing.T) {
	auth := NewJWTAuth("secret")
	token, err := auth.IssueToken("user-3", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil)
	_, err = auth.Authenticate(r)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTAuth_WrongSecretRejected(t *testing.T) {
	issuer := NewJWTAuth("secret-a")
	token, err := issuer.IssueToken("user-4", time.Now().Add(time.Hour))
	require.NoError(t, err)

	verifier := NewJWTAuth("secret-b")
	r := httptest.NewRequest(http.MethodGet, "/stream?token="+token, nil)
	_, err = verifier.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTAuth_MissingTokenRejected(t *testing.T) {
	auth := NewJWTAuth("secret")
	r := httptest.NewRequest(http.MethodGet, "/stream", nil)
	_, err := auth.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNoAuth_AcceptsAndDefaultsToAnonymous(t *testing.T) {
	auth := NewNoAuth()
	r := httptest.NewRequest(http.MethodGet, "/stream", nil)
	subject, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", subject)
}

func TestNoAuth_HonorsSubjectQueryParam(t *testing.T) {
	auth := NewNoAuth()
	r := httptest.NewRequest(http.MethodGet, "/stream?subject=dev", nil)
	subject, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "dev", subject)
}
