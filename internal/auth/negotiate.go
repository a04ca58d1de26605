package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

const defaultKrb5Config = "/etc/krb5.conf"

// KerberosOptions configure the Negotiate and Kerberos schemes.
type KerberosOptions struct {
	// ConfigPath is the krb5.conf to load. When empty, $KRB5_CONFIG and then
	// /etc/krb5.conf are tried the first time a challenge arrives.
	ConfigPath string
	// SPN overrides the service principal. Defaults to "HTTP/<host>".
	SPN string
	// DisablePAFXFAST turns off FAST pre-authentication, needed for Active
	// Directory.
	DisablePAFXFAST bool
}

// NegotiateScheme answers Negotiate (SPNEGO) or Kerberos challenges with a
// Kerberos service ticket. Logged-in clients are cached per principal.
type NegotiateScheme struct {
	name string
	opts KerberosOptions

	confOnce sync.Once
	conf     *config.Config

	mu      sync.Mutex
	clients map[string]*client.Client
}

// NewNegotiateScheme creates a scheme answering challenges named name. An
// explicit ConfigPath is loaded immediately.
func NewNegotiateScheme(name string, opts KerberosOptions) (*NegotiateScheme, error) {
	s := &NegotiateScheme{
		name:    name,
		opts:    opts,
		clients: make(map[string]*client.Client),
	}
	if opts.ConfigPath != "" {
		conf, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("auth: load krb5 config %s: %w", opts.ConfigPath, err)
		}
		s.conf = conf
		s.confOnce.Do(func() {})
	}
	return s, nil
}

func (s *NegotiateScheme) Name() string { return s.name }

// Available reports whether a password and a krb5 configuration exist.
func (s *NegotiateScheme) Available(creds Credentials) bool {
	return creds.Username != "" && creds.Password != "" && s.krbConfig() != nil
}

func (s *NegotiateScheme) Authenticate(next http.RoundTripper, req *http.Request, _ Challenge, creds Credentials) (*http.Response, error) {
	cl, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	spn := s.opts.SPN
	if spn == "" {
		spn = "HTTP/" + req.URL.Hostname()
	}
	if err := spnego.SetSPNEGOHeader(cl, req, spn); err != nil {
		return nil, fmt.Errorf("auth: %s token: %w", s.name, err)
	}
	if s.name != SchemeSPNEGO {
		token := strings.TrimPrefix(req.Header.Get("Authorization"), SchemeSPNEGO+" ")
		req.Header.Set("Authorization", s.name+" "+token)
	}
	return next.RoundTrip(req)
}

// Close destroys cached Kerberos sessions.
func (s *NegotiateScheme) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.clients {
		cl.Destroy()
		delete(s.clients, key)
	}
}

func (s *NegotiateScheme) client(creds Credentials) (*client.Client, error) {
	conf := s.krbConfig()
	if conf == nil {
		return nil, errors.New("auth: no krb5 configuration available")
	}
	realm := creds.Domain
	if realm == "" {
		realm = conf.LibDefaults.DefaultRealm
	}
	key := realm + `\` + creds.Username

	s.mu.Lock()
	defer s.mu.Unlock()
	if cl, ok := s.clients[key]; ok {
		return cl, nil
	}
	cl := client.NewWithPassword(creds.Username, realm, creds.Password, conf,
		client.DisablePAFXFAST(s.opts.DisablePAFXFAST))
	s.clients[key] = cl
	return cl, nil
}

func (s *NegotiateScheme) krbConfig() *config.Config {
	s.confOnce.Do(func() {
		path := os.Getenv("KRB5_CONFIG")
		if path == "" {
			path = defaultKrb5Config
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		if conf, err := config.Load(path); err == nil {
			s.conf = conf
		}
	})
	return s.conf
}
