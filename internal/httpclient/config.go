package httpclient

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Defaults applied by DefaultConfig.
const (
	DefaultConnectTimeout         = 2000 * time.Millisecond
	DefaultSocketTimeout          = 5000 * time.Millisecond
	DefaultMaxTotalConnections    = 3000
	DefaultMaxConnectionsPerRoute = 1500
)

// Fallbacks for non-positive pool limits.
const (
	BuiltinMaxTotal    = 20
	BuiltinMaxPerRoute = 10
)

const defaultIdleConnTimeout = 90 * time.Second

// Supported proxy schemes.
const (
	ProxyHTTP   = "http"
	ProxyHTTPS  = "https"
	ProxySOCKS5 = "socks5"
)

// ClientConfig holds the settings a Client is built from. Create copies it;
// later changes to the caller's value have no effect on the Client.
type ClientConfig struct {
	// ConnectTimeout bounds TCP connect and TLS handshake. Must be positive.
	ConnectTimeout time.Duration
	// SocketTimeout bounds inactivity while writing a request, waiting for
	// response headers, or reading the body. Must be positive.
	SocketTimeout time.Duration

	// MaxTotalConnections caps leased connections across all routes.
	// Non-positive values fall back to BuiltinMaxTotal.
	MaxTotalConnections int
	// MaxConnectionsPerRoute caps connections per destination host.
	// Non-positive values fall back to BuiltinMaxPerRoute.
	MaxConnectionsPerRoute int

	// ProxyHost is required when the client is created with useProxy.
	ProxyHost string
	// ProxyPort is the proxy port. Zero selects the scheme's default port.
	ProxyPort int
	// ProxyScheme is "http" (default), "https" or "socks5".
	ProxyScheme   string
	ProxyUsername string
	ProxyPassword string

	// IOThreads is the number of dispatcher goroutines. Zero means one per CPU.
	IOThreads int
	// QueueSize bounds requests waiting for dispatch. Zero means 1024.
	QueueSize int

	// IdleConnTimeout is how long an idle pooled connection is kept.
	// Non-positive values mean 90s.
	IdleConnTimeout time.Duration

	// EnableHTTP2 negotiates HTTP/2 over TLS when the server supports it.
	EnableHTTP2 bool

	// TLS customises the TLS context. Nil uses the system trust store.
	TLS *TLSConfig
}

// DefaultConfig returns a ClientConfig with the standard timeouts and limits.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:         DefaultConnectTimeout,
		SocketTimeout:          DefaultSocketTimeout,
		MaxTotalConnections:    DefaultMaxTotalConnections,
		MaxConnectionsPerRoute: DefaultMaxConnectionsPerRoute,
	}
}

// EffectiveMaxTotal returns the pool-wide limit the client will use.
func (c ClientConfig) EffectiveMaxTotal() int {
	if c.MaxTotalConnections > 0 {
		return c.MaxTotalConnections
	}
	return BuiltinMaxTotal
}

// EffectiveMaxPerRoute returns the per-route limit the client will use.
func (c ClientConfig) EffectiveMaxPerRoute() int {
	if c.MaxConnectionsPerRoute > 0 {
		return c.MaxConnectionsPerRoute
	}
	return BuiltinMaxPerRoute
}

func (c ClientConfig) idleConnTimeout() time.Duration {
	if c.IdleConnTimeout > 0 {
		return c.IdleConnTimeout
	}
	return defaultIdleConnTimeout
}

func (c ClientConfig) proxyScheme() string {
	if c.ProxyScheme == "" {
		return ProxyHTTP
	}
	return c.ProxyScheme
}

// Validate checks c for use with or without a proxy.
func (c ClientConfig) Validate(useProxy bool) error {
	if c.ConnectTimeout <= 0 {
		return invalidConfig("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.SocketTimeout <= 0 {
		return invalidConfig("socket timeout must be positive, got %s", c.SocketTimeout)
	}
	if c.ProxyPort != 0 && c.ProxyHost == "" {
		return invalidConfig("proxy port %d given without proxy host", c.ProxyPort)
	}
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return invalidConfig("proxy port %d out of range", c.ProxyPort)
	}
	switch c.proxyScheme() {
	case ProxyHTTP, ProxyHTTPS, ProxySOCKS5:
	default:
		return invalidConfig("unsupported proxy scheme %q", c.ProxyScheme)
	}
	if useProxy && c.ProxyHost == "" {
		return invalidConfig("proxy requested but no proxy host configured")
	}
	if c.ProxyPassword != "" && c.ProxyUsername == "" {
		return invalidConfig("proxy password given without proxy username")
	}
	if err := c.TLS.Validate(); err != nil {
		return newError(KindInvalidConfig, "validate tls", err)
	}
	return nil
}

// proxyURL returns the proxy endpoint. It assumes c has been validated.
func (c ClientConfig) proxyURL() *url.URL {
	scheme := c.proxyScheme()
	port := c.ProxyPort
	if port == 0 {
		switch scheme {
		case ProxyHTTPS:
			port = 443
		case ProxySOCKS5:
			port = 1080
		default:
			port = 80
		}
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.ProxyHost, strconv.Itoa(port)),
	}
	if c.ProxyUsername != "" {
		u.User = url.UserPassword(c.ProxyUsername, c.ProxyPassword)
	}
	return u
}

// clone returns a deep copy so the Client never shares mutable state with
// the caller.
func (c ClientConfig) clone() ClientConfig {
	if c.TLS != nil {
		tlsCopy := *c.TLS
		c.TLS = &tlsCopy
	}
	return c
}
