package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads the configuration from defaults, an optional file and the
// environment, and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	Settings.PopulateViperDefaults(v)

	v.SetEnvPrefix("FITTRACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}
	var err error

	config.Server.Address = v.GetString("SERVER_ADDR")
	if config.Server.ShutdownTimeout, err = parseDuration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}

	config.Metrics.Address = v.GetString("METRICS_ADDR")

	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")

	// An absent proxy target disables the rewrite branch, it is not an error
	if raw := strings.TrimSpace(v.GetString("PROXY_TARGET_URL")); raw != "" {
		target, err := parseAbsoluteURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy target URL: %w", err)
		}
		config.Proxy.TargetURL = target
	}
	if config.Proxy.Timeout, err = parseDuration(v, "PROXY_TIMEOUT"); err != nil {
		return nil, err
	}

	config.Identity.URL = strings.TrimRight(strings.TrimSpace(v.GetString("IDENTITY_URL")), "/")
	config.Identity.AnonKey = v.GetString("IDENTITY_ANON_KEY")
	config.Identity.ServiceKey = v.GetString("IDENTITY_SERVICE_KEY")
	config.Identity.CookieName = v.GetString("IDENTITY_COOKIE_NAME")
	config.Identity.CookieSecure = v.GetBool("IDENTITY_COOKIE_SECURE")
	config.Identity.VerifyJWKS = v.GetBool("IDENTITY_VERIFY_JWKS")
	if config.Identity.Timeout, err = parseDuration(v, "IDENTITY_TIMEOUT"); err != nil {
		return nil, err
	}

	config.Store.Driver = strings.ToLower(v.GetString("STORE_DRIVER"))
	config.Store.DatabaseURL = v.GetString("STORE_DATABASE_URL")
	config.Store.MaxConns = v.GetInt32("STORE_MAX_CONNS")

	config.Locale.Default = v.GetString("LOCALE_DEFAULT")
	config.CORS.AllowedOrigins = parseList(v, "CORS_ALLOWED_ORIGINS")

	config.Observability.LogLevel = v.GetString("LOG_LEVEL")

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToLower(key), err)
	}
	return d, nil
}

// parseList reads a list that may be given as a YAML sequence or as a comma
// or space separated string
func parseList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u, nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if cfg.Identity.URL != "" {
		if _, err := parseAbsoluteURL(cfg.Identity.URL); err != nil {
			return fmt.Errorf("invalid identity URL: %w", err)
		}
	}
	if cfg.Identity.CookieName == "" {
		return fmt.Errorf("identity cookie name must not be empty")
	}

	switch cfg.Store.Driver {
	case "rest":
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return fmt.Errorf("database URL is required when using the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}

	return nil
}
