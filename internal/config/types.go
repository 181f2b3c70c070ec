package config

import (
	"net/url"
	"time"
)

// Config represents the complete application configuration. It is built
// once by Load and passed down explicitly; nothing else reads the
// environment.
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		Enabled  bool
		CertPath string
		KeyPath  string
	}

	// Proxy holds the external rewrite target for /proxy/*
	Proxy struct {
		// TargetURL is nil when the proxy branch is disabled
		TargetURL *url.URL
		// Timeout bounds the wait for upstream response headers
		Timeout time.Duration
	}

	// Identity holds the identity service settings
	Identity struct {
		// URL is the base URL of the backend project; empty disables auth
		URL string
		// AnonKey is the public API key sent with every call
		AnonKey string
		// ServiceKey is the privileged key, only used for seeding
		ServiceKey string
		// CookieName is the base name of the session cookie
		CookieName string
		// CookieSecure marks session cookies Secure
		CookieSecure bool
		// VerifyJWKS validates access tokens locally against the JWKS
		VerifyJWKS bool
		// Timeout bounds each identity call
		Timeout time.Duration
	}

	// Store holds data store settings
	Store struct {
		// Driver is "rest" or "postgres"
		Driver string
		// DatabaseURL is the Postgres DSN for the postgres driver
		DatabaseURL string
		// MaxConns caps the pgx pool size
		MaxConns int32
	}

	// Locale holds message localization settings
	Locale struct {
		// Default is the BCP 47 tag used when Accept-Language does not match
		Default string
	}

	// CORS holds settings for the JSON API
	CORS struct {
		AllowedOrigins []string
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
	}
}

// IdentityEnabled reports whether both identity settings are present
func (c *Config) IdentityEnabled() bool {
	return c.Identity.URL != "" && c.Identity.AnonKey != ""
}
