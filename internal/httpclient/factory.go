package httpclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"asynchttp/internal/auth"
	"asynchttp/internal/cookies"
	"asynchttp/internal/reactor"
)

// Option customises a Factory.
type Option func(*options)

type options struct {
	log        zerolog.Logger
	hooks      Hooks
	creds      auth.CredentialsProvider
	jar        http.CookieJar
	schemes    []auth.Scheme
	kerberos   auth.KerberosOptions
	preference []string
}

// WithLogger sets the logger used by created clients.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHooks sets request lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithCredentialsProvider replaces the default empty credentials provider.
func WithCredentialsProvider(p auth.CredentialsProvider) Option {
	return func(o *options) { o.creds = p }
}

// WithCookieJar replaces the default empty in-memory cookie jar.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) { o.jar = jar }
}

// WithAuthScheme registers an extra authentication scheme. Its name must
// not collide with a built-in one.
func WithAuthScheme(s auth.Scheme) Option {
	return func(o *options) { o.schemes = append(o.schemes, s) }
}

func WithKerberos(opts auth.KerberosOptions) Option {
	return func(o *options) { o.kerberos = opts }
}

// WithAuthPreference sets the order in which offered challenges are answered.
func WithAuthPreference(names ...string) Option {
	return func(o *options) { o.preference = append([]string(nil), names...) }
}

// Factory creates Clients sharing one set of options.
type Factory struct {
	opts options
}

// NewFactory returns a Factory. With no options clients log nothing, start
// with an empty credentials provider and an empty in-memory cookie jar.
func NewFactory(opts ...Option) *Factory {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Factory{opts: o}
}

// Create is shorthand for NewFactory(opts...).Create(cfg, useProxy).
func Create(cfg ClientConfig, useProxy bool, opts ...Option) (*Client, error) {
	return NewFactory(opts...).Create(cfg, useProxy)
}

// Create validates cfg and returns a started Client. When useProxy is set
// every request is routed through the configured proxy. On error nothing
// is left running.
func (f *Factory) Create(cfg ClientConfig, useProxy bool) (*Client, error) {
	cfg = cfg.clone()
	if err := cfg.Validate(useProxy); err != nil {
		return nil, err
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, newError(KindTLSInit, "build tls context", err)
	}

	sessions, err := newSessionRegistry(tlsCfg)
	if err != nil {
		return nil, newError(KindReactorInit, "register session strategies", err)
	}

	builtin, err := auth.DefaultSchemes(f.opts.kerberos)
	if err != nil {
		return nil, newError(KindAuthRegistration, "load kerberos config", err)
	}
	schemes, err := auth.NewRegistry(append(builtin, f.opts.schemes...)...)
	if err != nil {
		return nil, newError(KindAuthRegistration, "register auth schemes", err)
	}

	creds := f.opts.creds
	if creds == nil {
		creds = auth.NewBasicCredentialsProvider()
	}
	jar := f.opts.jar
	if jar == nil {
		if jar, err = cookies.NewMemoryJar(); err != nil {
			closeSchemes(schemes)
			return nil, newError(KindReactorInit, "create cookie jar", err)
		}
	}

	var proxy *url.URL
	if useProxy {
		proxy = cfg.proxyURL()
	}

	transport, err := newTransport(cfg, sessions, tlsCfg, proxy)
	if err != nil {
		closeSchemes(schemes)
		return nil, newError(KindReactorInit, "build transport", err)
	}

	r, err := reactor.New(reactor.Config{
		Workers:   cfg.IOThreads,
		QueueSize: cfg.QueueSize,
		MaxLeases: cfg.EffectiveMaxTotal(),
	})
	if err != nil {
		transport.CloseIdleConnections()
		closeSchemes(schemes)
		return nil, newError(KindReactorInit, "start reactor", err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	c := &Client{
		cfg:       cfg,
		proxy:     proxy,
		sessions:  sessions,
		schemes:   schemes,
		creds:     creds,
		jar:       jar,
		hooks:     f.opts.hooks,
		log:       f.opts.log,
		transport: transport,
		reactor:   r,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.http = &http.Client{
		Transport: &auth.Transport{
			Next:        transport,
			Schemes:     schemes,
			Credentials: creds,
			Preference:  f.opts.preference,
		},
		Jar: jar,
	}

	event := f.opts.log.Info().
		Int("max_total", cfg.EffectiveMaxTotal()).
		Int("max_per_route", cfg.EffectiveMaxPerRoute()).
		Int("io_threads", r.Stats().Workers).
		Dur("connect_timeout", cfg.ConnectTimeout).
		Dur("socket_timeout", cfg.SocketTimeout).
		Strs("auth_schemes", schemes.Names())
	if proxy != nil {
		event = event.Str("proxy", proxy.Redacted())
	}
	event.Msg("http client created")
	return c, nil
}
