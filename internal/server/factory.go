// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"fittrack/internal/actions"
	"fittrack/internal/app"
	"fittrack/internal/config"
	"fittrack/internal/gate"
	"fittrack/internal/i18n"
	"fittrack/internal/identity"
	"fittrack/internal/observability"
	"fittrack/internal/observability/logging"
	"fittrack/internal/observability/metrics"
	"fittrack/internal/store"
	"fittrack/internal/store/postgres"
	"fittrack/internal/store/rest"
	tlsconfig "fittrack/internal/tls"

	"github.com/gorilla/mux"
)

// connectTimeout bounds the initial store connection at startup
const connectTimeout = 10 * time.Second

// NewFromConfig creates a new server from configuration
func NewFromConfig(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	// Initialize observability
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	// Initialize TLS configuration
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:   logger,
			CertPath: cfg.TLS.CertPath,
			KeyPath:  cfg.TLS.KeyPath,
		}
		if tlsCfg, err = tlsSetup.GetTLSConfig(); err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	translator, err := i18n.New(cfg.Locale.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize translations: %w", err)
	}

	// The identity client is optional. Interfaces stay untyped nil when it
	// is absent so the gate and the app see it as disabled.
	var (
		gateIdentity    gate.Identity
		appIdentity     app.Identity
		actionsIdentity actions.Identity
	)
	if cfg.IdentityEnabled() {
		client, err := identity.New(ctx, identity.Config{
			URL:          cfg.Identity.URL,
			AnonKey:      cfg.Identity.AnonKey,
			CookieName:   cfg.Identity.CookieName,
			CookieSecure: cfg.Identity.CookieSecure,
			VerifyJWKS:   cfg.Identity.VerifyJWKS,
			Timeout:      cfg.Identity.Timeout,
		}, logger, obs.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity client: %w", err)
		}
		gateIdentity, appIdentity, actionsIdentity = client, client, client
	} else {
		logger.Warn("Identity service not configured, every request passes the gate unchecked")
	}

	// Initialize data store
	dataStore, err := OpenStore(ctx, cfg, cfg.Identity.AnonKey, logger, obs.Metrics)
	if err != nil {
		return nil, err
	}

	g := gate.New(gate.Config{
		ProxyTarget:  cfg.Proxy.TargetURL,
		ProxyTimeout: cfg.Proxy.Timeout,
	}, gateIdentity, dataStore, translator, logger, obs.Metrics)

	acts := actions.New(actionsIdentity, dataStore, logger)

	application, err := app.New(app.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, appIdentity, dataStore, acts, translator, logger)
	if err != nil {
		dataStore.Close()
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	// Health probes bypass the gate; everything else goes through it
	root := mux.NewRouter()
	root.Use(observability.RecordRoute)
	root.Handle("/healthz", application.Health()).Methods("GET", "HEAD")
	root.PathPrefix("/").Handler(g.Middleware(application.Handler()))

	// Create server configuration
	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	// Create complete middleware chain: observability -> gate -> app
	handler := obs.Middleware(root)

	srv := New(serverConfig, handler, obs.MetricsHandler(), logger)
	srv.OnStop(dataStore.Close)
	return srv, nil
}

// OpenStore opens the configured data store wrapped with metrics. apiKey is
// the key the REST driver authenticates with when a request carries no
// access token of its own. Without a backend URL or key the REST driver is
// replaced by a store that fails every call.
func OpenStore(ctx context.Context, cfg *config.Config, apiKey string, logger *logging.Logger, collector *metrics.Collector) (store.Store, error) {
	var s store.Store
	switch cfg.Store.Driver {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		pg, err := postgres.Open(connectCtx, postgres.Config{
			URL:      cfg.Store.DatabaseURL,
			MaxConns: cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := pg.Ping(connectCtx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to reach postgres: %w", err)
		}
		s = pg
	default:
		if cfg.Identity.URL == "" || apiKey == "" {
			logger.Warn("No backend URL or key configured, data store calls will fail")
			s = store.Unavailable()
			break
		}
		r, err := rest.New(rest.Config{
			URL:     cfg.Identity.URL,
			APIKey:  apiKey,
			Timeout: cfg.Identity.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create REST store: %w", err)
		}
		s = r
	}

	logger.Info("Data store ready", "driver", cfg.Store.Driver)
	return store.Instrument(s, collector, logger), nil
}
