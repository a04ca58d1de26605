package cookies

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultRedisKey is the key prefix used when none is configured.
	DefaultRedisKey = "asynchttp:cookies"
	// DefaultRedisTTL bounds how long a host's cookies live without writes.
	DefaultRedisTTL = 24 * time.Hour

	redisOpTimeout = 2 * time.Second
)

// RedisJarConfig configures a RedisJar.
type RedisJarConfig struct {
	// Key is the prefix for per-host hashes.
	Key string
	// TTL is applied to a host's hash on every write.
	TTL time.Duration
}

// RedisJar stores cookies in one Redis hash per host so that several client
// instances share a session. Cookies are scoped to the exact host that set
// them; the Domain attribute is not widened.
type RedisJar struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
}

// NewRedisJar wraps an existing client.
func NewRedisJar(client *redis.Client, cfg RedisJarConfig, log zerolog.Logger) *RedisJar {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisTTL
	}
	return &RedisJar{client: client, key: cfg.Key, ttl: cfg.TTL, log: log, now: time.Now}
}

// DialRedisJar parses a redis:// URL, verifies the connection and returns a
// jar backed by it.
func DialRedisJar(ctx context.Context, rawURL string, cfg RedisJarConfig, log zerolog.Logger) (*RedisJar, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cookies: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cookies: connect to redis: %w", err)
	}
	return NewRedisJar(client, cfg, log), nil
}

// SetCookies implements http.CookieJar.
func (j *RedisJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := j.hostKey(u)
	now := j.now()
	pipe := j.client.TxPipeline()
	for _, c := range cookies {
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     cookiePath(u, c),
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		field := sc.Name + "|" + sc.Path

		switch {
		case c.MaxAge < 0:
			pipe.HDel(ctx, key, field)
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				pipe.HDel(ctx, key, field)
				continue
			}
			sc.Expires = c.Expires
		}

		data, err := json.Marshal(sc)
		if err != nil {
			j.log.Warn().Err(err).Str("cookie", c.Name).Msg("failed to encode cookie")
			continue
		}
		pipe.HSet(ctx, key, field, data)
	}
	pipe.Expire(ctx, key, j.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		j.log.Warn().Err(err).Str("host", u.Hostname()).Msg("failed to store cookies")
	}
}

// Cookies implements http.CookieJar.
func (j *RedisJar) Cookies(u *url.URL) []*http.Cookie {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := j.hostKey(u)
	entries, err := j.client.HGetAll(ctx, key).Result()
	if err != nil {
		j.log.Warn().Err(err).Str("host", u.Hostname()).Msg("failed to load cookies")
		return nil
	}

	now := j.now()
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	secure := u.Scheme == "https"

	var out []*http.Cookie
	var expired []string
	for field, raw := range entries {
		var sc storedCookie
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			expired = append(expired, field)
			continue
		}
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			expired = append(expired, field)
			continue
		}
		if sc.Secure && !secure {
			continue
		}
		if !pathMatch(path, sc.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	if len(expired) > 0 {
		if err := j.client.HDel(ctx, key, expired...).Err(); err != nil {
			j.log.Debug().Err(err).Msg("failed to prune expired cookies")
		}
	}
	return out
}

// Clear removes every stored cookie for the host of u.
func (j *RedisJar) Clear(ctx context.Context, u *url.URL) error {
	return j.client.Del(ctx, j.hostKey(u)).Err()
}

// Close closes the underlying Redis client.
func (j *RedisJar) Close() error {
	return j.client.Close()
}

func (j *RedisJar) hostKey(u *url.URL) string {
	return j.key + ":" + strings.ToLower(u.Hostname())
}

// cookiePath returns the cookie's path or the RFC 6265 default path of u.
func cookiePath(u *url.URL, c *http.Cookie) string {
	if strings.HasPrefix(c.Path, "/") {
		return c.Path
	}
	p := u.EscapedPath()
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// pathMatch implements RFC 6265 section 5.1.4.
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if strings.HasPrefix(reqPath, cookiePath) {
		return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
	}
	return false
}

var _ http.CookieJar = (*RedisJar)(nil)
