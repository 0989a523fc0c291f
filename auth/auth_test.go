package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/pets?limit=5", nil)
	require.NoError(t, err)
	return req
}

func TestBearer(t *testing.T) {
	req := newRequest(t)
	require.NoError(t, Bearer("t0k3n").Apply(context.Background(), req))
	assert.Equal(t, "Bearer t0k3n", req.Header.Get("Authorization"))

	err := Bearer("").Apply(context.Background(), newRequest(t))
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestBasic(t *testing.T) {
	req := newRequest(t)
	require.NoError(t, Basic{Username: "alice", Password: "s3cret"}.Apply(context.Background(), req))

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cret", pass)
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		location string
		check    func(t *testing.T, req *http.Request)
	}{
		{
			name:     "header",
			location: "header",
			check: func(t *testing.T, req *http.Request) {
				assert.Equal(t, "k-1", req.Header.Get("X-API-Key"))
			},
		},
		{
			name:     "query keeps existing parameters",
			location: "query",
			check: func(t *testing.T, req *http.Request) {
				assert.Equal(t, "k-1", req.URL.Query().Get("X-API-Key"))
				assert.Equal(t, "5", req.URL.Query().Get("limit"))
			},
		},
		{
			name:     "cookie",
			location: "cookie",
			check: func(t *testing.T, req *http.Request) {
				c, err := req.Cookie("X-API-Key")
				require.NoError(t, err)
				assert.Equal(t, "k-1", c.Value)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t)
			key := APIKey{Key: "k-1", Name: "X-API-Key", Location: tt.location}
			require.NoError(t, key.Apply(context.Background(), req))
			tt.check(t, req)
		})
	}

	err := APIKey{Key: "k", Name: "k", Location: "body"}.Apply(context.Background(), newRequest(t))
	assert.Error(t, err)
}

func TestTokenSource(t *testing.T) {
	calls := 0
	ts := TokenSource(func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})

	req := newRequest(t)
	require.NoError(t, ts.Apply(context.Background(), req))
	assert.Equal(t, "Bearer fresh", req.Header.Get("Authorization"))
	assert.Equal(t, 1, calls)

	failing := TokenSource(func(context.Context) (string, error) {
		return "", errors.New("token endpoint down")
	})
	assert.Error(t, failing.Apply(context.Background(), newRequest(t)))
}

func TestRegistryEditor(t *testing.T) {
	r := NewRegistry()
	r.Register("bearerAuth", Bearer("t"))
	r.Register("apiKey", APIKey{Key: "k", Name: "X-Key", Location: "header"})

	t.Run("all registered schemes", func(t *testing.T) {
		req := newRequest(t)
		require.NoError(t, r.Editor()(context.Background(), req))
		assert.Equal(t, "Bearer t", req.Header.Get("Authorization"))
		assert.Equal(t, "k", req.Header.Get("X-Key"))
	})

	t.Run("selected scheme", func(t *testing.T) {
		req := newRequest(t)
		require.NoError(t, r.Editor("apiKey")(context.Background(), req))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("unknown scheme", func(t *testing.T) {
		err := r.Editor("oauth2")(context.Background(), newRequest(t))
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	assert.Equal(t, []string{"bearerAuth", "apiKey"}, r.Schemes())
}

func TestContextEditor(t *testing.T) {
	r := NewRegistry()
	r.Register("bearerAuth", Bearer("t"))
	r.Register("apiKey", APIKey{Key: "k", Name: "X-Key", Location: "header"})
	editor := r.ContextEditor()

	req := newRequest(t)
	require.NoError(t, editor(context.Background(), req))
	assert.Empty(t, req.Header.Get("Authorization"), "no selection applies nothing")
	assert.Empty(t, req.Header.Get("X-Key"))

	ctx := WithSchemes(context.Background(), "apiKey")
	schemes, ok := SchemesFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"apiKey"}, schemes)

	req = newRequest(t)
	require.NoError(t, editor(ctx, req))
	assert.Equal(t, "k", req.Header.Get("X-Key"))
	assert.Empty(t, req.Header.Get("Authorization"))

	err := editor(WithSchemes(context.Background(), "oauth2"), newRequest(t))
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
