package auth

import "net/http"

// BasicScheme sends the username and password in the Authorization header.
type BasicScheme struct{}

func (BasicScheme) Name() string { return SchemeBasic }

func (BasicScheme) Available(creds Credentials) bool { return creds.Username != "" }

func (BasicScheme) Authenticate(next http.RoundTripper, req *http.Request, _ Challenge, creds Credentials) (*http.Response, error) {
	req.SetBasicAuth(creds.Username, creds.Password)
	return next.RoundTrip(req)
}
