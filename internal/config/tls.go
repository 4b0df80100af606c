package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
)

// TLSConfig controls HTTPS on the main listener. The metrics listener always serves plain HTTP.
type TLSConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	MinVersion string `json:"min_version" yaml:"min_version"`
}

var tlsVersions = map[string]uint16{
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// DefaultTLSConfig returns TLS disabled with a 1.2 floor for when it is turned on
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		MinVersion: "1.2",
	}
}

// Validate checks that the certificate pair exists when TLS is enabled
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if c.CertFile == "" {
		errs = append(errs, errors.New("cert_file is required when TLS is enabled"))
	} else if _, err := os.Stat(c.CertFile); err != nil {
		errs = append(errs, fmt.Errorf("cert_file not readable: %w", err))
	}
	if c.KeyFile == "" {
		errs = append(errs, errors.New("key_file is required when TLS is enabled"))
	} else if _, err := os.Stat(c.KeyFile); err != nil {
		errs = append(errs, fmt.Errorf("key_file not readable: %w", err))
	}
	if _, ok := tlsVersions[c.MinVersion]; !ok && c.MinVersion != "" {
		errs = append(errs, fmt.Errorf("invalid min_version: %s, must be one of: 1.2, 1.3", c.MinVersion))
	}

	return errors.Join(errs...)
}

// ServerTLSConfig returns the crypto/tls settings for the main listener.
// Certificates are loaded by ServeTLS from CertFile and KeyFile.
func (c TLSConfig) ServerTLSConfig() *tls.Config {
	version, ok := tlsVersions[c.MinVersion]
	if !ok {
		version = tls.VersionTLS12
	}
	return &tls.Config{MinVersion: version}
}
