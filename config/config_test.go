package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynchttp/internal/auth"
	"asynchttp/internal/httpclient"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cookies.Type)
	assert.Equal(t, "asynchttp:cookies", cfg.Cookies.Redis.Key)
	assert.Equal(t, 86400, cfg.Cookies.Redis.TTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.False(t, cfg.ProxyEnabled())

	cc, err := cfg.HTTPClientConfig()
	require.NoError(t, err)
	assert.Equal(t, httpclient.DefaultConfig().ConnectTimeout, cc.ConnectTimeout)
	assert.Equal(t, httpclient.DefaultConfig().SocketTimeout, cc.SocketTimeout)
	assert.Equal(t, 3000, cc.MaxTotalConnections)
	assert.Equal(t, 1500, cc.MaxConnectionsPerRoute)
	assert.Nil(t, cc.TLS)
	assert.NoError(t, cc.Validate(cfg.ProxyEnabled()))
}

func TestLoad_YAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
server:
  port: "9000"
  master_key: "${TEST_MASTER_KEY:-}"
client:
  connect_timeout_ms: 1000
  max_connections_per_route: 0
  proxy:
    enabled: true
    host: "${TEST_PROXY_HOST}"
    port: 3128
  tls:
    min_version: "1.3"
auth:
  preference: ["Digest", "Basic"]
  credentials:
    - host: api.internal
      realm: ops
      username: svc
      password: "${TEST_SVC_PASSWORD}"
    - username: "${TEST_UNSET_USER}"
      password: nope
cookies:
  type: redis
  redis:
    url: redis://localhost:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("TEST_MASTER_KEY", "mk")
	t.Setenv("TEST_PROXY_HOST", "proxy.internal")
	t.Setenv("TEST_SVC_PASSWORD", "pw")
	t.Setenv("CLIENT_SOCKET_TIMEOUT_MS", "750")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "mk", cfg.Server.MasterKey)
	assert.True(t, cfg.ProxyEnabled())
	assert.Equal(t, []string{"Digest", "Basic"}, cfg.Auth.Preference)
	require.Len(t, cfg.Auth.Credentials, 1)
	assert.Equal(t, "pw", cfg.Auth.Credentials[0].Password)
	assert.Equal(t, "redis", cfg.Cookies.Type)

	cc, err := cfg.HTTPClientConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cc.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cc.SocketTimeout)
	assert.Equal(t, 0, cc.MaxConnectionsPerRoute)
	assert.Equal(t, "proxy.internal", cc.ProxyHost)
	assert.Equal(t, 3128, cc.ProxyPort)
	require.NotNil(t, cc.TLS)
	assert.Equal(t, uint16(tls.VersionTLS13), cc.TLS.MinVersion)
	assert.NoError(t, cc.Validate(true))

	provider := auth.NewBasicCredentialsProvider()
	cfg.ApplyCredentials(provider)
	creds, ok := provider.Credentials(auth.Scope{Host: "api.internal", Port: 443, Realm: "ops", Scheme: "Basic"})
	require.True(t, ok)
	assert.Equal(t, "svc", creds.Username)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestHTTPClientConfig_BadTLSVersion(t *testing.T) {
	cfg := &Config{Client: ClientConfig{ConnectTimeoutMs: 1, SocketTimeoutMs: 1, TLS: TLSConfig{MinVersion: "2.0"}}}

	_, err := cfg.HTTPClientConfig()
	assert.Error(t, err)
}

func TestRedisJarConfig(t *testing.T) {
	cfg := &Config{Cookies: CookiesConfig{Redis: RedisConfig{Key: "k", TTL: 60}}}

	jc := cfg.RedisJarConfig()
	assert.Equal(t, "k", jc.Key)
	assert.Equal(t, time.Minute, jc.TTL)
}

func TestKerberosOptions(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Kerberos: KerberosConfig{ConfigPath: "/etc/krb5.conf", SPN: "HTTP/web", DisablePAFXFAST: true}}}

	assert.Equal(t, auth.KerberosOptions{ConfigPath: "/etc/krb5.conf", SPN: "HTTP/web", DisablePAFXFAST: true}, cfg.KerberosOptions())
}
