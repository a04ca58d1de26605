package auth

import (
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// NTLMScheme runs the NTLM negotiate/challenge/authenticate exchange.
// The go-ntlmssp negotiator reads the credentials from basic auth on the
// request and keeps the exchange on one connection.
type NTLMScheme struct{}

func (NTLMScheme) Name() string { return SchemeNTLM }

func (NTLMScheme) Available(creds Credentials) bool { return creds.Username != "" }

func (NTLMScheme) Authenticate(next http.RoundTripper, req *http.Request, _ Challenge, creds Credentials) (*http.Response, error) {
	user := creds.Username
	if creds.Domain != "" {
		user = creds.Domain + `\` + user
	}
	req.SetBasicAuth(user, creds.Password)
	return ntlmssp.Negotiator{RoundTripper: next}.RoundTrip(req)
}
