package auth

import (
	"fmt"
	"net/http"

	"github.com/icholy/digest"
)

// DigestScheme answers RFC 7616 digest challenges.
type DigestScheme struct{}

func (DigestScheme) Name() string { return SchemeDigest }

func (DigestScheme) Available(creds Credentials) bool { return creds.Username != "" }

func (DigestScheme) Authenticate(next http.RoundTripper, req *http.Request, ch Challenge, creds Credentials) (*http.Response, error) {
	chal, err := digest.ParseChallenge(ch.Raw)
	if err != nil {
		return nil, fmt.Errorf("auth: parse digest challenge: %w", err)
	}
	cred, err := digest.Digest(chal, digest.Options{
		Method:   req.Method,
		URI:      req.URL.RequestURI(),
		GetBody:  req.GetBody,
		Count:    1,
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: compute digest: %w", err)
	}
	req.Header.Set("Authorization", cred.String())
	return next.RoundTrip(req)
}
