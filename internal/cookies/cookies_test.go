package cookies

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJar(t *testing.T) (*RedisJar, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	jar := NewRedisJar(client, RedisJarConfig{Key: "test:cookies", TTL: time.Hour}, zerolog.Nop())
	t.Cleanup(func() { _ = jar.Close() })
	return jar, mini
}

func names(cookies []*http.Cookie) []string {
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.Name+"="+c.Value)
	}
	sort.Strings(out)
	return out
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestMemoryJar(t *testing.T) {
	jar, err := NewMemoryJar()
	require.NoError(t, err)

	u := mustURL(t, "https://www.example.com/app")
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	assert.Equal(t, []string{"session=abc"}, names(jar.Cookies(u)))
	assert.Empty(t, jar.Cookies(mustURL(t, "https://other.example.org/")))
}

func TestRedisJar_RoundTrip(t *testing.T) {
	jar, mini := newTestJar(t)
	u := mustURL(t, "https://api.example.com/v1/items")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "session", Value: "abc", Path: "/"},
		{Name: "scoped", Value: "1", Path: "/v1"},
		{Name: "other", Value: "2", Path: "/admin"},
	})

	assert.Equal(t, []string{"scoped=1", "session=abc"}, names(jar.Cookies(u)))
	assert.Equal(t, []string{"other=2", "session=abc"}, names(jar.Cookies(mustURL(t, "https://api.example.com/admin/x"))))
	assert.Empty(t, jar.Cookies(mustURL(t, "https://elsewhere.example.com/")))

	assert.True(t, mini.Exists("test:cookies:api.example.com"))
	assert.Equal(t, time.Hour, mini.TTL("test:cookies:api.example.com"))
}

func TestRedisJar_SecureCookiesOnlyOverHTTPS(t *testing.T) {
	jar, _ := newTestJar(t)
	jar.SetCookies(mustURL(t, "https://example.com/"), []*http.Cookie{{Name: "token", Value: "t", Path: "/", Secure: true}})

	assert.Empty(t, jar.Cookies(mustURL(t, "http://example.com/")))
	assert.Equal(t, []string{"token=t"}, names(jar.Cookies(mustURL(t, "https://example.com/"))))
}

func TestRedisJar_Expiry(t *testing.T) {
	jar, _ := newTestJar(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jar.now = func() time.Time { return now }
	u := mustURL(t, "http://example.com/")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "short", Value: "s", Path: "/", MaxAge: 60},
		{Name: "long", Value: "l", Path: "/", Expires: now.Add(time.Hour)},
		{Name: "stale", Value: "x", Path: "/", Expires: now.Add(-time.Minute)},
	})
	assert.Equal(t, []string{"long=l", "short=s"}, names(jar.Cookies(u)))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, []string{"long=l"}, names(jar.Cookies(u)))
}

func TestRedisJar_DeleteWithNegativeMaxAge(t *testing.T) {
	jar, _ := newTestJar(t)
	u := mustURL(t, "http://example.com/")

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Path: "/", MaxAge: -1}})
	assert.Empty(t, jar.Cookies(u))
}

func TestRedisJar_DefaultPath(t *testing.T) {
	jar, _ := newTestJar(t)
	jar.SetCookies(mustURL(t, "http://example.com/docs/page"), []*http.Cookie{{Name: "p", Value: "1"}})

	assert.Equal(t, []string{"p=1"}, names(jar.Cookies(mustURL(t, "http://example.com/docs/other"))))
	assert.Empty(t, jar.Cookies(mustURL(t, "http://example.com/")))
}

func TestRedisJar_Clear(t *testing.T) {
	jar, _ := newTestJar(t)
	u := mustURL(t, "http://example.com/")
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1", Path: "/"}})

	require.NoError(t, jar.Clear(context.Background(), u))
	assert.Empty(t, jar.Cookies(u))
}

func TestRedisJar_UnavailableRedisDoesNotPanic(t *testing.T) {
	jar, mini := newTestJar(t)
	mini.Close()

	u := mustURL(t, "http://example.com/")
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1", Path: "/"}})
	assert.Nil(t, jar.Cookies(u))
}

func TestDialRedisJar_BadURL(t *testing.T) {
	_, err := DialRedisJar(context.Background(), "not-a-url", RedisJarConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestPathMatch(t *testing.T) {
	assert.True(t, pathMatch("/", "/"))
	assert.True(t, pathMatch("/docs/a", "/docs"))
	assert.True(t, pathMatch("/docs/a", "/docs/"))
	assert.False(t, pathMatch("/docsx", "/docs"))
	assert.False(t, pathMatch("/", "/docs"))
}
