package auth

import (
	"strings"
	"sync"
)

// Credentials are the secrets presented to a server for one auth scope.
type Credentials struct {
	Username string
	Password string
	// Domain is the NTLM domain or Kerberos realm.
	Domain string
}

// Scope selects where credentials apply. Empty fields match anything.
type Scope struct {
	Host   string
	Port   int
	Realm  string
	Scheme string
}

// AnyScope matches every host, port, realm, and scheme.
var AnyScope = Scope{}

// match scores how specifically s covers target, or -1 when it does not.
func (s Scope) match(target Scope) int {
	factor := 0
	if s.Scheme != "" {
		if !strings.EqualFold(s.Scheme, target.Scheme) {
			return -1
		}
		factor++
	}
	if s.Realm != "" {
		if s.Realm != target.Realm {
			return -1
		}
		factor += 2
	}
	if s.Port != 0 {
		if s.Port != target.Port {
			return -1
		}
		factor += 4
	}
	if s.Host != "" {
		if !strings.EqualFold(s.Host, target.Host) {
			return -1
		}
		factor += 8
	}
	return factor
}

// CredentialsProvider resolves credentials for an auth scope.
type CredentialsProvider interface {
	Credentials(scope Scope) (Credentials, bool)
}

// BasicCredentialsProvider is an in-memory CredentialsProvider. The zero
// value is not usable; create one with NewBasicCredentialsProvider.
type BasicCredentialsProvider struct {
	mu      sync.RWMutex
	entries map[Scope]Credentials
}

// NewBasicCredentialsProvider returns an empty provider.
func NewBasicCredentialsProvider() *BasicCredentialsProvider {
	return &BasicCredentialsProvider{entries: make(map[Scope]Credentials)}
}

// SetCredentials stores creds for scope, replacing any previous entry.
func (p *BasicCredentialsProvider) SetCredentials(scope Scope, creds Credentials) {
	scope.Host = strings.ToLower(scope.Host)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[scope] = creds
}

// Clear removes all stored credentials.
func (p *BasicCredentialsProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[Scope]Credentials)
}

// Len returns the number of stored scopes.
func (p *BasicCredentialsProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Credentials returns the entry matching scope exactly, or else the most
// specific entry whose scope covers it.
func (p *BasicCredentialsProvider) Credentials(scope Scope) (Credentials, bool) {
	scope.Host = strings.ToLower(scope.Host)
	p.mu.RLock()
	defer p.mu.RUnlock()

	if creds, ok := p.entries[scope]; ok {
		return creds, true
	}

	best := -1
	var found Credentials
	for s, creds := range p.entries {
		if factor := s.match(scope); factor > best {
			best = factor
			found = creds
		}
	}
	return found, best >= 0
}
