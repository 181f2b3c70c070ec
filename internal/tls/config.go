// Package tls builds the server side TLS configuration
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"fittrack/internal/observability/logging"
)

// expiryWarning is how close to expiry a certificate is logged as a warning
const expiryWarning = 30 * 24 * time.Hour

// Config holds the TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string
}

// GetTLSConfig loads the key pair and creates a TLS configuration for the
// server
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing TLS configuration")

	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse TLS certificate: %w", err)
	}
	now := time.Now()
	switch {
	case now.After(leaf.NotAfter):
		return nil, fmt.Errorf("TLS certificate %s expired at %s", c.CertPath, leaf.NotAfter.Format(time.RFC3339))
	case leaf.NotAfter.Sub(now) < expiryWarning:
		c.Logger.Warn("TLS certificate expires soon", "subject", leaf.Subject.CommonName, "not_after", leaf.NotAfter)
	}

	c.Logger.Info("TLS configuration successful", "subject", leaf.Subject.CommonName)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
