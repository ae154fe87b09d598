package ballast

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

// DefaultRequestTimeout is applied to a Service's outgoing requests when
// not overridden by WithRequestTimeout or a per-call RequestOption.
const DefaultRequestTimeout = 10 * time.Second

// HTTPDoer is the interface Service depends on to send requests. Satisfied
// by *http.Client; tests substitute a stub to inject transport errors.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Service is the request-issuing facade: it chooses a backend via a Pool,
// assembles an absolute URL, sends the request, classifies the result, and
// retries against a different backend on failure until the reachable set
// is exhausted.
type Service struct {
	pool           *Pool
	client         HTTPDoer
	useHTTPS       bool
	requestTimeout time.Duration
	logger         hclog.Logger
}

// ServiceOption configures a Service at construction.
type ServiceOption func(*serviceConfig) error

type serviceConfig struct {
	pool           *Pool
	discovery      Discovery
	backends       []any
	useHTTPS       bool
	requestTimeout time.Duration
	client         HTTPDoer
	logger         hclog.Logger
}

// WithPool binds the Service to an existing Pool. Mutually exclusive with
// WithDiscovery and WithBackends.
func WithPool(p *Pool) ServiceOption {
	return func(c *serviceConfig) error {
		if c.pool != nil || c.discovery != nil || c.backends != nil {
			return newConfigurationError("only one of WithPool, WithDiscovery, or WithBackends may be used")
		}
		c.pool = p
		return nil
	}
}

// WithDiscovery constructs a default Pool (round-robin + TCP-connect
// prober + serial probe strategy) bound to discovery. Mutually exclusive
// with WithPool and WithBackends.
func WithDiscovery(d Discovery) ServiceOption {
	return func(c *serviceConfig) error {
		if c.pool != nil || c.discovery != nil || c.backends != nil {
			return newConfigurationError("only one of WithPool, WithDiscovery, or WithBackends may be used")
		}
		c.discovery = d
		return nil
	}
}

// WithBackends constructs a default Pool over a static discovery source
// built from entries (*Backend or "host"/"host:port" strings). Mutually
// exclusive with WithPool and WithDiscovery.
func WithBackends(entries ...any) ServiceOption {
	return func(c *serviceConfig) error {
		if c.pool != nil || c.discovery != nil || c.backends != nil {
			return newConfigurationError("only one of WithPool, WithDiscovery, or WithBackends may be used")
		}
		if len(entries) == 0 {
			return newConfigurationError("WithBackends requires at least one entry")
		}
		c.backends = entries
		return nil
	}
}

// WithHTTPS selects https for assembled URLs. Defaults to false.
func WithHTTPS(secure bool) ServiceOption {
	return func(c *serviceConfig) error { c.useHTTPS = secure; return nil }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) ServiceOption {
	return func(c *serviceConfig) error { c.requestTimeout = d; return nil }
}

// WithHTTPClient overrides the default pooled HTTP client.
func WithHTTPClient(client HTTPDoer) ServiceOption {
	return func(c *serviceConfig) error { c.client = client; return nil }
}

// WithServiceLogger overrides the default no-op logger.
func WithServiceLogger(l hclog.Logger) ServiceOption {
	return func(c *serviceConfig) error { c.logger = l; return nil }
}

// NewService constructs a Service. Exactly one of WithPool, WithDiscovery,
// or WithBackends must be provided; providing more than one, or none, is a
// *ConfigurationError.
func NewService(opts ...ServiceOption) (*Service, error) {
	cfg := &serviceConfig{
		requestTimeout: DefaultRequestTimeout,
		logger:         hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	pool := cfg.pool
	switch {
	case pool != nil:
		// already set
	case cfg.discovery != nil:
		pool = NewPool(cfg.discovery)
	case cfg.backends != nil:
		static, err := newStaticDiscovery(cfg.backends)
		if err != nil {
			return nil, err
		}
		pool = NewPool(static)
	default:
		return nil, newConfigurationError("expected one of WithPool, WithDiscovery, or WithBackends")
	}

	// The request timeout is applied per attempt through the request's
	// context (see attempt), so a per-call WithTimeout can exceed it.
	client := cfg.client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}

	return &Service{
		pool:           pool,
		client:         client,
		useHTTPS:       cfg.useHTTPS,
		requestTimeout: cfg.requestTimeout,
		logger:         cfg.logger.Named("service"),
	}, nil
}

// RequestOption configures a single Do call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	body    io.Reader
	headers http.Header
	params  url.Values
	timeout time.Duration
}

// WithBody sets the request body.
func WithBody(body io.Reader) RequestOption {
	return func(c *requestConfig) { c.body = body }
}

// WithHeader adds a header value.
func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) {
		if c.headers == nil {
			c.headers = http.Header{}
		}
		c.headers.Add(key, value)
	}
}

// WithParam adds a query parameter value.
func WithParam(key, value string) RequestOption {
	return func(c *requestConfig) {
		if c.params == nil {
			c.params = url.Values{}
		}
		c.params.Add(key, value)
	}
}

// WithTimeout overrides the Service's default request timeout for this
// call only. Ported from the original's per-call **kwargs timeout
// override (supplemented feature, see SPEC_FULL.md).
func WithTimeout(d time.Duration) RequestOption {
	return func(c *requestConfig) { c.timeout = d }
}

// Do is the generic request method: choose a backend, assemble the
// absolute URL, send, classify, and retry on failure until the reachable
// set is exhausted.
func (s *Service) Do(ctx context.Context, method, relativeURL string, opts ...RequestOption) (*http.Response, error) {
	cfg := &requestConfig{timeout: s.requestTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	attempts := len(s.pool.ReachableBackends())
	if attempts == 0 {
		attempts = 1 // give ChooseBackend a chance to surface the real error
	}

	for attempt := 0; attempt < attempts; attempt++ {
		backend, err := s.pool.ChooseBackend()
		if err != nil {
			return nil, err
		}

		absoluteURL := s.absoluteURL(backend, relativeURL, cfg.params)

		s.logger.Debug("request", "method", strings.ToUpper(method), "url", absoluteURL)

		resp, classification := s.attempt(ctx, method, absoluteURL, cfg)
		switch classification {
		case outcomeSuccess:
			return resp, nil
		case outcomeFailure:
			s.pool.MarkServerDown(backend)
		}
	}

	return nil, ErrNoReachableServers
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
)

func (s *Service) attempt(ctx context.Context, method, absoluteURL string, cfg *requestConfig) (*http.Response, outcome) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, absoluteURL, cfg.body)
	if err != nil {
		s.logger.Error("failed to build request", "url", absoluteURL, "error", err)
		return nil, outcomeFailure
	}
	for k, vs := range cfg.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("request to backend failed", "url", absoluteURL, "error", newTransportError(err))
		return nil, outcomeFailure
	}

	// 5xx errors should mark the server down; everything else (including
	// 4xx, which is the server's answer, not a load-balancing failure) is
	// returned as-is.
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, outcomeFailure
	}
	return resp, outcomeSuccess
}

func (s *Service) absoluteURL(b *Backend, relativeURL string, params url.Values) string {
	builder := FromBackend(b)
	if s.useHTTPS {
		builder.HTTPS()
	}
	builder.AppendPath(relativeURL)
	for k, vs := range params {
		for _, v := range vs {
			builder.AddQueryParam(k, v)
		}
	}
	return builder.Build()
}

// Get issues a GET request.
func (s *Service) Get(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodGet, url, opts...)
}

// Post issues a POST request.
func (s *Service) Post(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodPost, url, opts...)
}

// Put issues a PUT request.
func (s *Service) Put(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodPut, url, opts...)
}

// Patch issues a PATCH request.
func (s *Service) Patch(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodPatch, url, opts...)
}

// Delete issues a DELETE request.
func (s *Service) Delete(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodDelete, url, opts...)
}

// Head issues a HEAD request.
func (s *Service) Head(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodHead, url, opts...)
}

// Options issues an OPTIONS request.
func (s *Service) Options(ctx context.Context, url string, opts ...RequestOption) (*http.Response, error) {
	return s.Do(ctx, http.MethodOptions, url, opts...)
}

func newStaticDiscovery(entries []any) (Discovery, error) {
	backends := make([]*Backend, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case *Backend:
			backends = append(backends, v)
		case string:
			b, err := parseStaticEntry(v)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		default:
			return nil, newConfigurationError("backend entry %v is neither a *Backend nor a string", e)
		}
	}
	return &inlineStatic{backends: backends}, nil
}

// inlineStatic is the root package's own minimal static Discovery, used
// only by NewService's WithBackends convenience constructor so the core
// module does not have to import its own discovery subpackage. The
// fuller-featured ballast/discovery.Static (with DefaultPort handling
// factored out) is the public entry point for callers who build a Pool
// themselves.
type inlineStatic struct {
	backends []*Backend
}

func (s *inlineStatic) Snapshot(context.Context) ([]*Backend, error) {
	out := make([]*Backend, len(s.backends))
	copy(out, s.backends)
	return out, nil
}

func parseStaticEntry(entry string) (*Backend, error) {
	host, portStr, found := strings.Cut(entry, ":")
	if !found {
		return NewBackend(host, 80), nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, newConfigurationError("invalid port in %q: %v", entry, err)
	}
	return NewBackend(host, uint16(port)), nil
}
