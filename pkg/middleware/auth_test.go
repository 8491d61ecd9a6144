package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careledger/careledger/pkg/contextkeys"
	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/tenant"
)

type tokenMap struct {
	tokens map[string]*tenant.User
	err    error
}

func (m tokenMap) UserByToken(ctx context.Context, token string) (*tenant.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.tokens[token]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return user, nil
}

func TestTokenIdentityAuthenticate(t *testing.T) {
	identity := NewTokenIdentity(tokenMap{tokens: map[string]*tenant.User{
		"tok-abc": {ID: 7, Email: "biller@acme.example.com"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	user, err := identity.Authenticate(req)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
}

func TestTokenIdentityAnonymousPaths(t *testing.T) {
	identity := NewTokenIdentity(tokenMap{tokens: map[string]*tenant.User{}})

	cases := map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic dXNlcjpwYXNz",
		"empty token":   "Bearer ",
		"unknown token": "Bearer nope",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/claims", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			user, err := identity.Authenticate(req)
			assert.NoError(t, err)
			assert.Nil(t, user)
		})
	}
}

func TestTokenIdentityBackendError(t *testing.T) {
	identity := NewTokenIdentity(tokenMap{err: errors.New("database down")})

	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	_, err := identity.Authenticate(req)
	assert.Error(t, err)
}

func TestAuthenticateMiddlewareStoresUser(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	identity := headerIdentity{users: map[string]*tenant.User{
		"7": {ID: 7},
	}}

	var got *tenant.User
	handler := Authenticate(identity, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActingUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Test-User", "7")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.ID)

	got = nil
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, got)
}

func TestRequestIDMiddleware(t *testing.T) {
	var fromCtx string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = contextkeys.GetRequestID(r.Context())
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), fromCtx)

	// Honored when supplied.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", fromCtx)
}
