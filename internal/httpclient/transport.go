package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"asynchttp/internal/registry"
)

const keepAlive = 30 * time.Second

// newTransport builds the pooled transport. Plain and TLS connections are
// produced by the session strategies registered for "http" and "https".
func newTransport(cfg ClientConfig, sessions *registry.Registry[SessionStrategy], tlsCfg *tls.Config, proxy *url.URL) (*http.Transport, error) {
	plain, ok := sessions.Lookup("http")
	if !ok {
		return nil, errors.New("no session strategy for http")
	}
	secure, ok := sessions.Lookup("https")
	if !ok {
		return nil, errors.New("no session strategy for https")
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: keepAlive,
	}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &writeDeadlineConn{Conn: conn, timeout: cfg.SocketTimeout}, nil
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return plain.Upgrade(ctx, conn, "")
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
			return secure.Upgrade(ctx, conn, host)
		},
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          cfg.EffectiveMaxTotal(),
		MaxIdleConnsPerHost:   cfg.EffectiveMaxPerRoute(),
		MaxConnsPerHost:       cfg.EffectiveMaxPerRoute(),
		IdleConnTimeout:       cfg.idleConnTimeout(),
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, err
		}
	} else {
		// A non-nil empty map disables the built-in HTTP/2 upgrade.
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	return transport, nil
}

// writeDeadlineConn arms a write deadline before every write so a peer
// that stops reading cannot stall a request past the socket timeout.
// Read inactivity is watched per request, see watchdog.
type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
