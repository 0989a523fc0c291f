package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/kolah/courier/auth"
	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/binding"
	"github.com/kolah/courier/internal/config"
	"github.com/kolah/courier/internal/conformance"
	"github.com/kolah/courier/internal/loader"
	"github.com/kolah/courier/internal/model"
	"github.com/kolah/courier/internal/output"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

// document is a loaded OpenAPI document plus the configuration that named it.
type document struct {
	cfg    *config.Config
	result *loader.Result
	spec   *model.Spec
	logger *slog.Logger
}

func loadDocument(cmd *cobra.Command) (*document, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)

	result, err := loader.LoadFile(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("loading spec: %w", err)
	}

	for _, w := range result.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}

	spec, err := loader.Transform(result)
	if err != nil {
		return nil, fmt.Errorf("transforming spec: %w", err)
	}

	logger.Debug("loaded document",
		"openapi", result.Version,
		"title", spec.Info.Title,
		"version", spec.Info.Version,
		"operations", len(spec.Operations),
	)

	return &document{cfg: cfg, result: result, spec: spec, logger: logger}, nil
}

// newLogger writes text logs to w; debug lowers the level from warn.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session executes operations of a loaded document.
type session struct {
	*document
	engine      *engine.Engine
	credentials *auth.Registry
	checker     *conformance.Checker
	printer     *output.Printer
}

func newSession(cmd *cobra.Command) (*session, error) {
	doc, err := loadDocument(cmd)
	if err != nil {
		return nil, err
	}
	return doc.session()
}

func (d *document) session() (*session, error) {
	cfg := d.cfg

	baseURL, err := d.baseURL()
	if err != nil {
		return nil, err
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	printer, err := output.NewPrinter(format, cfg.Output.Query)
	if err != nil {
		return nil, err
	}

	var transport engine.Transport = engine.NewHTTPTransport(&http.Client{Timeout: cfg.Timeout})

	var checker *conformance.Checker
	if cfg.CheckConformance() {
		opts := conformance.DefaultOptions()
		opts.Strict = cfg.Conformance == config.ConformanceStrict
		opts.Logger = d.logger
		checker, err = conformance.New(d.result.Source, opts)
		if err != nil {
			return nil, err
		}
		transport = checker.Wrap(transport)
	}

	credentials := buildCredentials(d.spec, cfg.Auth)

	opts := []engine.Option{
		engine.WithTransport(transport),
		engine.WithLogger(d.logger),
		engine.WithRequestEditor(headerEditor(cfg.Headers)),
		engine.WithRequestEditor(credentials.ContextEditor()),
	}
	eng, err := engine.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}

	return &session{
		document:    d,
		engine:      eng,
		credentials: credentials,
		checker:     checker,
		printer:     printer,
	}, nil
}

func (d *document) baseURL() (string, error) {
	if d.cfg.BaseURL != "" {
		return d.cfg.BaseURL, nil
	}
	if len(d.spec.Servers) == 0 {
		return "", fmt.Errorf("document declares no servers; set --base-url")
	}
	server := d.spec.Servers[0].URL
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" || strings.Contains(server, "{") {
		return "", fmt.Errorf("document server %q is not an absolute URL; set --base-url", server)
	}
	return server, nil
}

// operation resolves an operation ID, suggesting close matches when the ID
// is unknown.
func (d *document) operation(id string) (*model.Operation, error) {
	if op, ok := d.spec.Operation(id); ok {
		return op, nil
	}
	return nil, &UnknownOperationError{ID: id, Suggestions: suggest(id, d.spec.OperationIDs(), 3)}
}

// invoke binds and executes one invocation.
func (s *session) invoke(ctx context.Context, inv binding.Invocation) (*engine.Response, error) {
	op, err := s.operation(inv.Operation)
	if err != nil {
		return nil, err
	}
	bound, err := binding.Bind(op, inv)
	if err != nil {
		return nil, err
	}

	schemes := s.schemesFor(op)
	if len(schemes) > 0 {
		ctx = auth.WithSchemes(ctx, schemes...)
	}
	if s.checker != nil {
		ctx = conformance.WithOperation(ctx, bound)
	}
	return s.engine.Exchange(ctx, bound)
}

// schemesFor returns the required schemes that have credentials configured.
func (s *session) schemesFor(op *model.Operation) []string {
	reqs := s.spec.SecurityFor(op)
	var schemes, missing []string
	for _, r := range reqs {
		if s.credentials.Get(r.Name) != nil {
			schemes = append(schemes, r.Name)
		} else {
			missing = append(missing, r.Name)
		}
	}
	if len(schemes) == 0 && len(missing) > 0 {
		s.logger.Warn("no credentials configured for operation", "operation", op.ID, "schemes", missing)
	}
	if len(s.spec.Security) == 0 {
		// Documents without security schemes still get any configured
		// credential.
		return s.credentials.Schemes()
	}
	return schemes
}

// UnknownOperationError reports an operation ID missing from the document.
type UnknownOperationError struct {
	ID          string
	Suggestions []string
}

func (e *UnknownOperationError) Error() string {
	msg := fmt.Sprintf("unknown operation %q", e.ID)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

type lowerSource []string

func (s lowerSource) String(i int) string { return strings.ToLower(s[i]) }
func (s lowerSource) Len() int            { return len(s) }

// suggest returns up to limit candidates ranked by fuzzy score.
func suggest(query string, candidates []string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	matches := fuzzy.FindFrom(query, lowerSource(candidates))
	if len(matches) > limit {
		matches = matches[:limit]
	}
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		result = append(result, candidates[m.Index])
	}
	return result
}

func headerEditor(headers map[string]string) engine.RequestEditor {
	return func(_ context.Context, req *http.Request) error {
		for name, value := range headers {
			req.Header.Set(name, value)
		}
		return nil
	}
}
