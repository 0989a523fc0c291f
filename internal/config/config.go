package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kolah/courier/internal/output"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultFile is read from the working directory when --config is not set.
const DefaultFile = "courier.yaml"

type Config struct {
	Spec        string            `koanf:"spec"`
	BaseURL     string            `koanf:"base-url"`
	Timeout     time.Duration     `koanf:"timeout"`
	Headers     map[string]string `koanf:"headers"`
	Auth        AuthConfig        `koanf:"auth"`
	Output      OutputConfig      `koanf:"output"`
	Conformance string            `koanf:"conformance"`
	Debug       bool              `koanf:"debug"`
	Batch       BatchConfig       `koanf:"batch"`
}

type AuthConfig struct {
	BearerToken string `koanf:"bearer-token"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	APIKey      string `koanf:"api-key"`
	APIKeyName  string `koanf:"api-key-name"`
	APIKeyIn    string `koanf:"api-key-in"`
}

type OutputConfig struct {
	Format string `koanf:"format"`
	Query  string `koanf:"query"`
}

type BatchConfig struct {
	Concurrency int64 `koanf:"concurrency"`
}

// Conformance modes.
const (
	ConformanceOff    = "off"
	ConformanceWarn   = "warn"
	ConformanceStrict = "strict"
)

// BindFlags binds the flags shared by every command.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP("config", "c", "", "Config file path (default: courier.yaml)")
	flags.StringP("spec", "s", "", "OpenAPI document path")
	flags.String("base-url", "", "API base URL (default: first server of the document)")
	flags.Duration("timeout", 0, "Per-call timeout, e.g. 30s")
	flags.StringArrayP("header", "H", nil, "Extra request header as Name:Value (repeatable)")
	flags.String("bearer-token", "", "Bearer token for http bearer and oauth2 schemes")
	flags.String("username", "", "Username for http basic schemes")
	flags.String("password", "", "Password for http basic schemes")
	flags.String("api-key", "", "Key for apiKey schemes")
	flags.String("api-key-name", "", "Override the apiKey parameter name")
	flags.String("api-key-in", "", "Override the apiKey location: header, query, cookie")
	flags.StringP("output", "o", "", "Output format: json, compact, yaml, raw")
	flags.StringP("query", "q", "", "jq expression applied to the response entity")
	flags.String("conformance", "", "Check traffic against the document: off, warn, strict")
	flags.Bool("debug", false, "Log requests and responses to stderr")
	flags.Int64("concurrency", 0, "Concurrent calls in batch mode")
}

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile, _ = cmd.PersistentFlags().GetString("config")
	}
	if configFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			configFile = DefaultFile
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	flagsMap, err := buildFlagsMap(cmd)
	if err != nil {
		return nil, err
	}
	if len(flagsMap) > 0 {
		if err := k.Load(confmap.Provider(flagsMap, "."), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func buildFlagsMap(cmd *cobra.Command) (map[string]any, error) {
	m := make(map[string]any)

	getString := func(name string) string {
		if v, err := cmd.Flags().GetString(name); err == nil && v != "" {
			return v
		}
		if v, err := cmd.PersistentFlags().GetString(name); err == nil && v != "" {
			return v
		}
		return ""
	}

	// flagSet returns the set declaring name, local flags first.
	flagSet := func(name string) *pflag.FlagSet {
		if cmd.Flags().Lookup(name) != nil {
			return cmd.Flags()
		}
		return cmd.PersistentFlags()
	}

	flagChanged := func(name string) bool {
		return cmd.Flags().Changed(name) || cmd.PersistentFlags().Changed(name)
	}

	stringFlags := map[string]string{
		"spec":         "spec",
		"base-url":     "base-url",
		"bearer-token": "auth.bearer-token",
		"username":     "auth.username",
		"password":     "auth.password",
		"api-key":      "auth.api-key",
		"api-key-name": "auth.api-key-name",
		"api-key-in":   "auth.api-key-in",
		"output":       "output.format",
		"query":        "output.query",
		"conformance":  "conformance",
	}
	for flag, key := range stringFlags {
		if v := getString(flag); v != "" {
			m[key] = v
		}
	}

	if flagChanged("timeout") {
		if v, err := flagSet("timeout").GetDuration("timeout"); err == nil {
			m["timeout"] = v
		}
	}
	if flagChanged("debug") {
		if v, err := flagSet("debug").GetBool("debug"); err == nil {
			m["debug"] = v
		}
	}
	if flagChanged("concurrency") {
		if v, err := flagSet("concurrency").GetInt64("concurrency"); err == nil {
			m["batch.concurrency"] = v
		}
	}
	if flagChanged("header") {
		values, _ := flagSet("header").GetStringArray("header")
		for _, h := range values {
			name, value, err := ParseHeader(h)
			if err != nil {
				return nil, err
			}
			m["headers."+name] = value
		}
	}

	return m, nil
}

// ParseHeader splits a Name:Value header argument.
func ParseHeader(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q (expected Name:Value)", s)
	}
	if strings.Contains(name, ".") {
		return "", "", fmt.Errorf("invalid header name %q", name)
	}
	return name, strings.TrimSpace(value), nil
}

func (c *Config) Validate() error {
	if c.Spec == "" {
		return fmt.Errorf("spec file is required")
	}

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url: %s (must be absolute, e.g. https://api.example.com)", c.BaseURL)
		}
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s (must not be negative)", c.Timeout)
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	validLocations := map[string]bool{"": true, "header": true, "query": true, "cookie": true}
	if !validLocations[c.Auth.APIKeyIn] {
		return fmt.Errorf("invalid api key location: %s (valid: header, query, cookie)", c.Auth.APIKeyIn)
	}

	if c.Auth.Password != "" && c.Auth.Username == "" {
		return fmt.Errorf("password requires a username")
	}

	validModes := map[string]bool{"": true, ConformanceOff: true, ConformanceWarn: true, ConformanceStrict: true}
	if !validModes[c.Conformance] {
		return fmt.Errorf("invalid conformance mode: %s (valid: off, warn, strict)", c.Conformance)
	}

	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("invalid batch concurrency: %d (must not be negative)", c.Batch.Concurrency)
	}

	return nil
}

// CheckConformance reports whether traffic should be checked.
func (c *Config) CheckConformance() bool {
	return c.Conformance == ConformanceWarn || c.Conformance == ConformanceStrict
}
