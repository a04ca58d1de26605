// Package config provides configuration management for the application.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"asynchttp/internal/auth"
	"asynchttp/internal/cookies"
	"asynchttp/internal/httpclient"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cookies CookiesConfig `mapstructure:"cookies"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	MasterKey string `mapstructure:"master_key"` // Optional: Master key for authentication
}

// ClientConfig holds the pooled client settings. Durations are milliseconds.
type ClientConfig struct {
	ConnectTimeoutMs       int         `mapstructure:"connect_timeout_ms"`
	SocketTimeoutMs        int         `mapstructure:"socket_timeout_ms"`
	MaxTotalConnections    int         `mapstructure:"max_total_connections"`
	MaxConnectionsPerRoute int         `mapstructure:"max_connections_per_route"`
	IOThreads              int         `mapstructure:"io_threads"` // 0 = one per CPU
	QueueSize              int         `mapstructure:"queue_size"`
	IdleConnTimeoutMs      int         `mapstructure:"idle_conn_timeout_ms"`
	HTTP2                  bool        `mapstructure:"http2"`
	Proxy                  ProxyConfig `mapstructure:"proxy"`
	TLS                    TLSConfig   `mapstructure:"tls"`
}

// ProxyConfig holds the outbound proxy. Traffic is proxied only when Enabled.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Scheme   string `mapstructure:"scheme"` // "http", "https" or "socks5"
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// TLSConfig holds TLS context settings
type TLSConfig struct {
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
	SkipVerify bool   `mapstructure:"skip_verify"`
	MinVersion string `mapstructure:"min_version"` // "1.2" or "1.3"
}

// AuthConfig holds credentials and scheme settings for server authentication
type AuthConfig struct {
	Credentials []CredentialConfig `mapstructure:"credentials"`
	Kerberos    KerberosConfig     `mapstructure:"kerberos"`
	// Preference orders challenge schemes, e.g. ["Digest", "Basic"]
	Preference []string `mapstructure:"preference"`
}

// CredentialConfig binds credentials to an auth scope. Empty scope fields match anything.
type CredentialConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Realm    string `mapstructure:"realm"`
	Scheme   string `mapstructure:"scheme"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Domain   string `mapstructure:"domain"` // NTLM domain or Kerberos realm
}

// KerberosConfig holds Negotiate/Kerberos settings
type KerberosConfig struct {
	ConfigPath      string `mapstructure:"config_path"`
	SPN             string `mapstructure:"spn"`
	DisablePAFXFAST bool   `mapstructure:"disable_pafxfast"`
}

// CookiesConfig holds cookie store configuration
type CookiesConfig struct {
	// Type specifies the cookie backend: "memory" (default) or "redis"
	Type string `mapstructure:"type"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379")
	URL string `mapstructure:"url"`

	// Key prefixes the per-host cookie hashes (default: "asynchttp:cookies")
	Key string `mapstructure:"key"`

	// TTL expires idle cookie hashes, in seconds (default: 86400 = 24 hours)
	TTL int `mapstructure:"ttl"`
}

// MetricsConfig holds observability configuration for Prometheus metrics
type MetricsConfig struct {
	// Enabled controls whether Prometheus metrics are collected and exposed
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the HTTP path where metrics are exposed
	// Default: "/metrics"
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Env   string `mapstructure:"env"`   // "development" selects console output
	Level string `mapstructure:"level"` // zerolog level name
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables override file values: CLIENT_SOCKET_TIMEOUT_MS
// sets client.socket_timeout_ms.
func Load() (*Config, error) {
	// Load .env file directly into environment variables
	_ = godotenv.Load() // Ignore error (e.g., file not found)

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.master_key", "SERVER_MASTER_KEY", "ASYNCHTTP_MASTER_KEY")
	_ = v.BindEnv("log.env", "LOG_ENV", "ENV")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Read config file (optional, won't fail if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg = expandEnvVars(cfg)
	cfg = removeUnresolvedCredentials(cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := httpclient.DefaultConfig()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.master_key", "")
	v.SetDefault("client.connect_timeout_ms", def.ConnectTimeout.Milliseconds())
	v.SetDefault("client.socket_timeout_ms", def.SocketTimeout.Milliseconds())
	v.SetDefault("client.max_total_connections", def.MaxTotalConnections)
	v.SetDefault("client.max_connections_per_route", def.MaxConnectionsPerRoute)
	v.SetDefault("client.io_threads", 0)
	v.SetDefault("client.queue_size", 0)
	v.SetDefault("client.idle_conn_timeout_ms", 0)
	v.SetDefault("client.http2", false)
	v.SetDefault("client.proxy.enabled", false)
	v.SetDefault("client.proxy.host", "")
	v.SetDefault("client.proxy.port", 0)
	v.SetDefault("client.proxy.scheme", httpclient.ProxyHTTP)
	v.SetDefault("client.proxy.username", "")
	v.SetDefault("client.proxy.password", "")
	v.SetDefault("client.tls.ca_file", "")
	v.SetDefault("client.tls.cert_file", "")
	v.SetDefault("client.tls.key_file", "")
	v.SetDefault("client.tls.server_name", "")
	v.SetDefault("client.tls.skip_verify", false)
	v.SetDefault("client.tls.min_version", "")
	v.SetDefault("auth.kerberos.config_path", "")
	v.SetDefault("auth.kerberos.spn", "")
	v.SetDefault("auth.kerberos.disable_pafxfast", false)
	v.SetDefault("cookies.type", "memory")
	v.SetDefault("cookies.redis.url", "")
	v.SetDefault("cookies.redis.key", cookies.DefaultRedisKey)
	v.SetDefault("cookies.redis.ttl", int(cookies.DefaultRedisTTL/time.Second))
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("log.env", "production")
	v.SetDefault("log.level", "info")
}

// HTTPClientConfig converts the client section into an httpclient.ClientConfig.
func (c *Config) HTTPClientConfig() (httpclient.ClientConfig, error) {
	cc := c.Client
	out := httpclient.ClientConfig{
		ConnectTimeout:         time.Duration(cc.ConnectTimeoutMs) * time.Millisecond,
		SocketTimeout:          time.Duration(cc.SocketTimeoutMs) * time.Millisecond,
		MaxTotalConnections:    cc.MaxTotalConnections,
		MaxConnectionsPerRoute: cc.MaxConnectionsPerRoute,
		ProxyHost:              cc.Proxy.Host,
		ProxyPort:              cc.Proxy.Port,
		ProxyScheme:            cc.Proxy.Scheme,
		ProxyUsername:          cc.Proxy.Username,
		ProxyPassword:          cc.Proxy.Password,
		IOThreads:              cc.IOThreads,
		QueueSize:              cc.QueueSize,
		IdleConnTimeout:        time.Duration(cc.IdleConnTimeoutMs) * time.Millisecond,
		EnableHTTP2:            cc.HTTP2,
	}

	if cc.TLS != (TLSConfig{}) {
		minVersion, err := parseTLSVersion(cc.TLS.MinVersion)
		if err != nil {
			return httpclient.ClientConfig{}, err
		}
		out.TLS = &httpclient.TLSConfig{
			CAFile:     cc.TLS.CAFile,
			CertFile:   cc.TLS.CertFile,
			KeyFile:    cc.TLS.KeyFile,
			ServerName: cc.TLS.ServerName,
			SkipVerify: cc.TLS.SkipVerify,
			MinVersion: minVersion,
		}
	}
	return out, nil
}

// ProxyEnabled reports whether traffic should be routed through the proxy.
func (c *Config) ProxyEnabled() bool {
	return c.Client.Proxy.Enabled
}

// KerberosOptions returns the Negotiate/Kerberos scheme options.
func (c *Config) KerberosOptions() auth.KerberosOptions {
	return auth.KerberosOptions{
		ConfigPath:      c.Auth.Kerberos.ConfigPath,
		SPN:             c.Auth.Kerberos.SPN,
		DisablePAFXFAST: c.Auth.Kerberos.DisablePAFXFAST,
	}
}

// ApplyCredentials registers every configured credential with p.
func (c *Config) ApplyCredentials(p *auth.BasicCredentialsProvider) {
	for _, cred := range c.Auth.Credentials {
		p.SetCredentials(
			auth.Scope{Host: cred.Host, Port: cred.Port, Realm: cred.Realm, Scheme: cred.Scheme},
			auth.Credentials{Username: cred.Username, Password: cred.Password, Domain: cred.Domain},
		)
	}
}

// RedisJarConfig returns the Redis cookie jar settings.
func (c *Config) RedisJarConfig() cookies.RedisJarConfig {
	return cookies.RedisJarConfig{
		Key: c.Cookies.Redis.Key,
		TTL: time.Duration(c.Cookies.Redis.TTL) * time.Second,
	}
}

func parseTLSVersion(s string) (uint16, error) {
	switch s {
	case "":
		return 0, nil
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown tls min_version %q", s)
	}
}

// expandEnvVars expands environment variable references in configuration values
func expandEnvVars(cfg Config) Config {
	cfg.Server.Port = expandString(cfg.Server.Port)
	cfg.Server.MasterKey = expandString(cfg.Server.MasterKey)

	cfg.Metrics.Endpoint = expandString(cfg.Metrics.Endpoint)

	proxy := &cfg.Client.Proxy
	proxy.Host = expandString(proxy.Host)
	proxy.Username = expandString(proxy.Username)
	proxy.Password = expandString(proxy.Password)

	tlsCfg := &cfg.Client.TLS
	tlsCfg.CAFile = expandString(tlsCfg.CAFile)
	tlsCfg.CertFile = expandString(tlsCfg.CertFile)
	tlsCfg.KeyFile = expandString(tlsCfg.KeyFile)

	cfg.Auth.Kerberos.ConfigPath = expandString(cfg.Auth.Kerberos.ConfigPath)

	creds := make([]CredentialConfig, len(cfg.Auth.Credentials))
	for i, cred := range cfg.Auth.Credentials {
		cred.Host = expandString(cred.Host)
		cred.Username = expandString(cred.Username)
		cred.Password = expandString(cred.Password)
		cred.Domain = expandString(cred.Domain)
		creds[i] = cred
	}
	cfg.Auth.Credentials = creds

	cfg.Cookies.Type = expandString(cfg.Cookies.Type)
	cfg.Cookies.Redis.URL = expandString(cfg.Cookies.Redis.URL)
	cfg.Cookies.Redis.Key = expandString(cfg.Cookies.Redis.Key)

	return cfg
}

// expandString expands environment variable references like ${VAR_NAME} or ${VAR_NAME:-default} in a string
func expandString(s string) string {
	if s == "" {
		return s
	}
	return os.Expand(s, func(key string) string {
		varname := key
		defaultValue := ""
		hasDefault := false
		if strings.Contains(key, ":-") {
			parts := strings.SplitN(key, ":-", 2)
			varname = parts[0]
			defaultValue = parts[1]
			hasDefault = true
		}

		value := os.Getenv(varname)
		if value == "" {
			if hasDefault {
				return defaultValue
			}
			// Unset without a default keeps the placeholder so it can be detected later
			return "${" + key + "}"
		}
		return value
	})
}

// removeUnresolvedCredentials drops credentials without a username or with
// unexpanded placeholders.
func removeUnresolvedCredentials(cfg Config) Config {
	filtered := make([]CredentialConfig, 0, len(cfg.Auth.Credentials))
	for _, cred := range cfg.Auth.Credentials {
		if cred.Username == "" || strings.Contains(cred.Username, "${") || strings.Contains(cred.Password, "${") {
			continue
		}
		filtered = append(filtered, cred)
	}
	cfg.Auth.Credentials = filtered
	return cfg
}
