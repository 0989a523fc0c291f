package cli

import (
	"github.com/kolah/courier/auth"
	"github.com/kolah/courier/internal/config"
	"github.com/kolah/courier/internal/model"
)

// buildCredentials registers configured credentials under the document's
// security schemes. Without any schemes in the document, configured
// credentials are registered under their own type name.
func buildCredentials(spec *model.Spec, cfg config.AuthConfig) *auth.Registry {
	r := auth.NewRegistry()

	if len(spec.Security) == 0 {
		if cfg.BearerToken != "" {
			r.Register("bearer", auth.Bearer(cfg.BearerToken))
		}
		if cfg.Username != "" {
			r.Register("basic", auth.Basic{Username: cfg.Username, Password: cfg.Password})
		}
		if cfg.APIKey != "" && cfg.APIKeyName != "" {
			r.Register("apiKey", auth.APIKey{Key: cfg.APIKey, Name: cfg.APIKeyName, Location: cfg.APIKeyIn})
		}
		return r
	}

	for _, scheme := range spec.Security {
		if c := credentialFor(scheme, cfg); c != nil {
			r.Register(scheme.Name, c)
		}
	}
	return r
}

func credentialFor(scheme model.SecurityScheme, cfg config.AuthConfig) auth.Credential {
	switch scheme.Type {
	case model.SecurityTypeHTTP:
		switch scheme.Scheme {
		case "basic":
			if cfg.Username != "" {
				return auth.Basic{Username: cfg.Username, Password: cfg.Password}
			}
		case "bearer":
			if cfg.BearerToken != "" {
				return auth.Bearer(cfg.BearerToken)
			}
		}
	case model.SecurityTypeOAuth2, model.SecurityTypeOpenIDConnect:
		if cfg.BearerToken != "" {
			return auth.Bearer(cfg.BearerToken)
		}
	case model.SecurityTypeAPIKey:
		if cfg.APIKey == "" {
			return nil
		}
		key := auth.APIKey{Key: cfg.APIKey, Name: scheme.ParamName, Location: scheme.In}
		if cfg.APIKeyName != "" {
			key.Name = cfg.APIKeyName
		}
		if cfg.APIKeyIn != "" {
			key.Location = cfg.APIKeyIn
		}
		return key
	}
	return nil
}
