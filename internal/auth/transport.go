package auth

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"asynchttp/internal/registry"
)

// maxDrain bounds how much of a 401 body is read to reuse its connection.
const maxDrain = 64 << 10

// Transport retries a request once after a 401 using the most preferred
// offered scheme that has credentials. Requests that already carry an
// Authorization header are passed through untouched.
type Transport struct {
	Next        http.RoundTripper
	Schemes     *registry.Registry[Scheme]
	Credentials CredentialsProvider
	// Preference orders scheme names. Nil means DefaultPreference. Offered
	// schemes missing from the list are tried afterwards in header order.
	Preference []string
}

func (t *Transport) next() http.RoundTripper {
	if t.Next == nil {
		return http.DefaultTransport
	}
	return t.Next
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next()
	if req.Header.Get("Authorization") != "" || t.Schemes.Len() == 0 || t.Credentials == nil {
		return next.RoundTrip(req)
	}

	resp, err := next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	challenges := ParseChallenges(resp.Header.Values("WWW-Authenticate"))
	for _, ch := range t.order(challenges) {
		scheme, ok := t.Schemes.Lookup(ch.Scheme)
		if !ok {
			continue
		}
		creds, ok := t.Credentials.Credentials(scopeFor(req, ch))
		if !ok || !scheme.Available(creds) {
			continue
		}

		retry, err := rewind(req)
		if err != nil {
			return resp, nil
		}
		drain(resp)
		return scheme.Authenticate(next, retry, ch, creds)
	}
	return resp, nil
}

// order sorts challenges by preference, keeping header order for the rest.
func (t *Transport) order(challenges []Challenge) []Challenge {
	pref := t.Preference
	if pref == nil {
		pref = DefaultPreference
	}
	out := make([]Challenge, 0, len(challenges))
	used := make([]bool, len(challenges))
	for _, name := range pref {
		for i, ch := range challenges {
			if !used[i] && strings.EqualFold(ch.Scheme, name) {
				out = append(out, ch)
				used[i] = true
			}
		}
	}
	for i, ch := range challenges {
		if !used[i] {
			out = append(out, ch)
		}
	}
	return out
}

func scopeFor(req *http.Request, ch Challenge) Scope {
	port := 80
	if req.URL.Scheme == "https" {
		port = 443
	}
	if p := req.URL.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return Scope{
		Host:   strings.ToLower(req.URL.Hostname()),
		Port:   port,
		Realm:  ch.Realm(),
		Scheme: ch.Scheme,
	}
}

func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*Transport)(nil)
