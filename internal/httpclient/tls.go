package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLSConfig describes the TLS context used for https routes and https proxies.
// The zero value selects the system trust store with TLS 1.2 as minimum.
type TLSConfig struct {
	// CAFile replaces the system roots with the PEM certificates it contains.
	CAFile string
	// CertFile and KeyFile hold a client certificate for mutual TLS.
	CertFile string
	KeyFile  string
	// ServerName overrides the name used for certificate verification.
	ServerName string
	// SkipVerify disables server certificate verification.
	// Not recommended for production.
	SkipVerify bool
	// MinVersion is the minimum TLS version, e.g. tls.VersionTLS13.
	MinVersion uint16
}

// systemCertPool is swapped in tests.
var systemCertPool = x509.SystemCertPool

// Validate checks that the configuration is consistent.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if (c.CertFile != "") != (c.KeyFile != "") {
		return errors.New("tls: cert_file and key_file must be provided together")
	}
	if c.MinVersion != 0 && (c.MinVersion < tls.VersionTLS10 || c.MinVersion > tls.VersionTLS13) {
		return fmt.Errorf("tls: unknown min_version 0x%04x", c.MinVersion)
	}
	return nil
}

// Build creates the *tls.Config. A nil receiver builds the default context.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if c == nil {
		c = &TLSConfig{}
	}

	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.SkipVerify,
		ServerName:         c.ServerName,
		MinVersion:         minVersion,
	}

	if err := c.loadCA(cfg); err != nil {
		return nil, err
	}
	if err := c.loadClientCert(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *TLSConfig) loadCA(cfg *tls.Config) error {
	if c.CAFile == "" {
		pool, err := systemCertPool()
		if err != nil {
			return fmt.Errorf("tls: load system roots: %w", err)
		}
		cfg.RootCAs = pool
		return nil
	}
	ca, err := os.ReadFile(c.CAFile)
	if err != nil {
		return fmt.Errorf("tls: read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return fmt.Errorf("tls: no certificates found in %s", c.CAFile)
	}
	cfg.RootCAs = pool
	return nil
}

func (c *TLSConfig) loadClientCert(cfg *tls.Config) error {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return fmt.Errorf("tls: load client certificate: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}
	return nil
}
