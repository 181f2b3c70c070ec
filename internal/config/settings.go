package config

import "github.com/spf13/viper"

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting, also the env suffix after FITTRACK_
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Settings defines all application settings
var Settings = SettingList{
	// Server
	{Name: "SERVER_ADDR", Short: "Address on which the server listens", Type: String, Default: ":3000"},
	{Name: "METRICS_ADDR", Short: "Address on which the metrics server listens", Type: String, Default: ":9090"},
	{Name: "SHUTDOWN_TIMEOUT", Short: "Maximum time to wait for graceful shutdown", Type: String, Default: "30s"},

	// TLS
	{Name: "TLS_ENABLED", Short: "Enable TLS for the server", Type: Bool, Default: false},
	{Name: "TLS_CERT_PATH", Short: "Path to TLS certificate file", Type: String, Default: ""},
	{Name: "TLS_KEY_PATH", Short: "Path to TLS key file", Type: String, Default: ""},

	// External proxy
	{Name: "PROXY_TARGET_URL", Short: "Base URL that /proxy/* is rewritten to; empty disables", Type: String, Default: ""},
	{Name: "PROXY_TIMEOUT", Short: "Timeout for proxy target response headers", Type: String, Default: "30s"},

	// Identity service
	{Name: "IDENTITY_URL", Short: "Backend project URL", Type: String, Default: ""},
	{Name: "IDENTITY_ANON_KEY", Short: "Public API key", Type: String, Default: ""},
	{Name: "IDENTITY_SERVICE_KEY", Short: "Service role key, seed command only", Type: String, Default: ""},
	{Name: "IDENTITY_COOKIE_NAME", Short: "Base name of the session cookie", Type: String, Default: "sb-auth-token"},
	{Name: "IDENTITY_COOKIE_SECURE", Short: "Mark session cookies Secure", Type: Bool, Default: true},
	{Name: "IDENTITY_VERIFY_JWKS", Short: "Verify access tokens locally against the JWKS", Type: Bool, Default: false},
	{Name: "IDENTITY_TIMEOUT", Short: "Timeout for identity service calls", Type: String, Default: "10s"},

	// Data store
	{Name: "STORE_DRIVER", Short: "Data store backend (rest, postgres)", Type: String, Default: "rest"},
	{Name: "STORE_DATABASE_URL", Short: "Postgres DSN for the postgres driver", Type: String, Default: ""},
	{Name: "STORE_MAX_CONNS", Short: "Maximum pooled Postgres connections", Type: Int, Default: 10},

	// Localization and API
	{Name: "LOCALE_DEFAULT", Short: "Default message language", Type: String, Default: "th"},
	{Name: "CORS_ALLOWED_ORIGINS", Short: "Origins allowed to call /api, comma or space separated", Type: StringSlice, Default: []string{}},

	// Observability
	{Name: "LOG_LEVEL", Short: "Logging level", Type: String, Default: "info"},
}
