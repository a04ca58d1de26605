// Package cookies provides http.CookieJar implementations used as the
// client's default cookie store.
package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

// NewMemoryJar returns an empty in-process jar that honours the public
// suffix list when scoping domain cookies.
func NewMemoryJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookies: create jar: %w", err)
	}
	return jar, nil
}
