// Package auth attaches credentials for OpenAPI security schemes to
// outgoing requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kolah/courier/engine"
)

var ErrMissingCredentials = errors.New("missing credentials")

// Credential applies one security scheme to a request.
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// Bearer is an HTTP bearer token (type: http, scheme: bearer).
type Bearer string

// Apply implements Credential.
func (b Bearer) Apply(_ context.Context, req *http.Request) error {
	if b == "" {
		return fmt.Errorf("bearer: %w", ErrMissingCredentials)
	}
	req.Header.Set("Authorization", "Bearer "+string(b))
	return nil
}

// Basic is HTTP basic authentication (type: http, scheme: basic).
type Basic struct {
	Username string
	Password string
}

// Apply implements Credential.
func (b Basic) Apply(_ context.Context, req *http.Request) error {
	if b.Username == "" {
		return fmt.Errorf("basic: %w", ErrMissingCredentials)
	}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// APIKey is an API key sent in a header, query parameter or cookie
// (type: apiKey).
type APIKey struct {
	Key      string
	Name     string
	Location string
}

// Apply implements Credential.
func (k APIKey) Apply(_ context.Context, req *http.Request) error {
	if k.Key == "" {
		return fmt.Errorf("apiKey %s: %w", k.Name, ErrMissingCredentials)
	}
	if k.Name == "" {
		return errors.New("apiKey: parameter name is required")
	}
	switch strings.ToLower(k.Location) {
	case "header", "":
		req.Header.Set(k.Name, k.Key)
	case "query":
		q := req.URL.Query()
		q.Set(k.Name, k.Key)
		req.URL.RawQuery = q.Encode()
	case "cookie":
		req.AddCookie(&http.Cookie{Name: k.Name, Value: k.Key})
	default:
		return fmt.Errorf("apiKey %s: unsupported location %q", k.Name, k.Location)
	}
	return nil
}

// TokenSource fetches a token per request, for OAuth2 and OpenID Connect
// schemes whose tokens expire.
type TokenSource func(ctx context.Context) (string, error)

// Apply implements Credential.
func (ts TokenSource) Apply(ctx context.Context, req *http.Request) error {
	token, err := ts(ctx)
	if err != nil {
		return fmt.Errorf("fetching token: %w", err)
	}
	return Bearer(token).Apply(ctx, req)
}

// Registry holds credentials for named security schemes.
type Registry struct {
	credentials map[string]Credential
	order       []string
}

func NewRegistry() *Registry {
	return &Registry{credentials: make(map[string]Credential)}
}

// Register adds or replaces the credential for a scheme.
func (r *Registry) Register(scheme string, c Credential) {
	if _, ok := r.credentials[scheme]; !ok {
		r.order = append(r.order, scheme)
	}
	r.credentials[scheme] = c
}

// Get returns the credential for a scheme, or nil if not registered.
func (r *Registry) Get(scheme string) Credential {
	return r.credentials[scheme]
}

// Schemes returns registered scheme names in registration order.
func (r *Registry) Schemes() []string {
	return append([]string(nil), r.order...)
}

// Editor returns a request editor applying the credentials of the given
// schemes. With no schemes, every registered credential is applied.
// Unregistered schemes are an error.
func (r *Registry) Editor(schemes ...string) engine.RequestEditor {
	if len(schemes) == 0 {
		schemes = r.Schemes()
	}
	return func(ctx context.Context, req *http.Request) error {
		for _, name := range schemes {
			c := r.credentials[name]
			if c == nil {
				return fmt.Errorf("security scheme %q: %w", name, ErrMissingCredentials)
			}
			if err := c.Apply(ctx, req); err != nil {
				return fmt.Errorf("security scheme %q: %w", name, err)
			}
		}
		return nil
	}
}

// Editor adapts a single credential to a request editor.
func Editor(c Credential) engine.RequestEditor {
	return c.Apply
}

type schemesKey struct{}

// WithSchemes selects the schemes applied by ContextEditor for calls made
// with the returned context.
func WithSchemes(ctx context.Context, schemes ...string) context.Context {
	return context.WithValue(ctx, schemesKey{}, append([]string(nil), schemes...))
}

// SchemesFromContext returns the schemes selected with WithSchemes.
func SchemesFromContext(ctx context.Context) ([]string, bool) {
	s, ok := ctx.Value(schemesKey{}).([]string)
	return s, ok
}

// ContextEditor returns a request editor applying the schemes selected on
// the request context. Requests without a selection are left untouched.
func (r *Registry) ContextEditor() engine.RequestEditor {
	return func(ctx context.Context, req *http.Request) error {
		schemes, ok := SchemesFromContext(ctx)
		if !ok || len(schemes) == 0 {
			return nil
		}
		return r.Editor(schemes...)(ctx, req)
	}
}
