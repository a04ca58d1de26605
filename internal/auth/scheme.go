package auth

import (
	"fmt"
	"net/http"

	"asynchttp/internal/registry"
)

// Scheme names as they appear in WWW-Authenticate challenges.
const (
	SchemeBasic    = "Basic"
	SchemeDigest   = "Digest"
	SchemeNTLM     = "NTLM"
	SchemeSPNEGO   = "Negotiate"
	SchemeKerberos = "Kerberos"
)

// DefaultPreference is the order in which offered challenges are answered.
var DefaultPreference = []string{SchemeSPNEGO, SchemeKerberos, SchemeNTLM, SchemeDigest, SchemeBasic}

// Scheme answers one kind of authentication challenge.
type Scheme interface {
	// Name is the challenge token this scheme handles.
	Name() string
	// Available reports whether creds are sufficient for this scheme.
	Available(creds Credentials) bool
	// Authenticate sends req through next with credentials derived from ch.
	// req is a fresh copy that the scheme may modify.
	Authenticate(next http.RoundTripper, req *http.Request, ch Challenge, creds Credentials) (*http.Response, error)
}

// DefaultSchemes returns Basic, Digest, NTLM, Negotiate, and Kerberos.
// An unloadable Kerberos configuration is reported as an error.
func DefaultSchemes(krb KerberosOptions) ([]Scheme, error) {
	spnego, err := NewNegotiateScheme(SchemeSPNEGO, krb)
	if err != nil {
		return nil, err
	}
	kerberos, err := NewNegotiateScheme(SchemeKerberos, krb)
	if err != nil {
		return nil, err
	}
	return []Scheme{
		BasicScheme{},
		DigestScheme{},
		NTLMScheme{},
		spnego,
		kerberos,
	}, nil
}

// NewRegistry registers schemes under their names.
func NewRegistry(schemes ...Scheme) (*registry.Registry[Scheme], error) {
	b := registry.NewBuilder[Scheme]()
	for _, s := range schemes {
		if s == nil {
			return nil, fmt.Errorf("auth: register schemes: %w", registry.ErrNilValue)
		}
		b.Register(s.Name(), s)
	}
	r, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("auth: register schemes: %w", err)
	}
	return r, nil
}
