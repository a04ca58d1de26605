package httpclient

import (
	"context"
	"crypto/tls"
	"net"

	"asynchttp/internal/registry"
)

// SessionStrategy prepares a freshly dialed connection for a URL scheme.
type SessionStrategy interface {
	// Layered reports whether Upgrade wraps the connection in another protocol.
	Layered() bool
	// Upgrade returns the connection requests are written to. On error the
	// strategy closes conn.
	Upgrade(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
}

type plainStrategy struct{}

func (plainStrategy) Layered() bool { return false }

func (plainStrategy) Upgrade(_ context.Context, conn net.Conn, _ string) (net.Conn, error) {
	return conn, nil
}

type tlsStrategy struct {
	config *tls.Config
}

func (tlsStrategy) Layered() bool { return true }

func (s tlsStrategy) Upgrade(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	cfg := s.config.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return tc, nil
}

func newSessionRegistry(tlsCfg *tls.Config) (*registry.Registry[SessionStrategy], error) {
	return registry.NewBuilder[SessionStrategy]().
		Register("http", plainStrategy{}).
		Register("https", tlsStrategy{config: tlsCfg}).
		Build()
}
