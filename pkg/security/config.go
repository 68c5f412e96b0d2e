// Package security holds the TLS settings shared by moodzy's listeners and
// its clients.
package security

import (
	"fmt"

	"github.com/TSherpa10/moodzy/errors"
)

// ServerTLSConfig configures TLS on the REST and live-view listeners.
type ServerTLSConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	CertFile   string `json:"cert_file,omitempty" yaml:"cert_file,omitempty" env:"CERT_FILE"`
	KeyFile    string `json:"key_file,omitempty" yaml:"key_file,omitempty" env:"KEY_FILE"`
	MinVersion string `json:"min_version,omitempty" yaml:"min_version,omitempty" env:"MIN_VERSION"` // "1.2" or "1.3"

	MTLS ServerMTLSConfig `json:"mtls,omitempty" yaml:"mtls,omitempty" envPrefix:"MTLS_"`
}

// ServerMTLSConfig enables client certificate validation.
type ServerMTLSConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled" env:"ENABLED"`
	ClientCAFiles     []string `json:"client_ca_files,omitempty" yaml:"client_ca_files,omitempty" env:"CLIENT_CA_FILES"`
	RequireClientCert bool     `json:"require_client_cert,omitempty" yaml:"require_client_cert,omitempty" env:"REQUIRE_CLIENT_CERT"`
	AllowedClientCNs  []string `json:"allowed_client_cns,omitempty" yaml:"allowed_client_cns,omitempty" env:"ALLOWED_CLIENT_CNS"`
}

// ClientTLSConfig configures TLS for REST and websocket clients.
// The system CA bundle is always trusted; CAFiles are added to it.
type ClientTLSConfig struct {
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"` // dev only
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`

	MTLS ClientMTLSConfig `json:"mtls,omitempty" yaml:"mtls,omitempty"`
}

// ClientMTLSConfig provides a client certificate.
type ClientMTLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// Validate checks the server settings. A disabled config is always valid.
func (c ServerTLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cert_file and key_file are required", errors.ErrMissingConfig),
			"security", "Validate", "server certificate")
	}
	if err := validateMinVersion(c.MinVersion); err != nil {
		return err
	}
	if c.MTLS.Enabled && len(c.MTLS.ClientCAFiles) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: mtls needs at least one client_ca_file", errors.ErrMissingConfig),
			"security", "Validate", "client CA")
	}
	return nil
}

// Validate checks the client settings.
func (c ClientTLSConfig) Validate() error {
	if err := validateMinVersion(c.MinVersion); err != nil {
		return err
	}
	if c.MTLS.Enabled && (c.MTLS.CertFile == "" || c.MTLS.KeyFile == "") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: mtls needs cert_file and key_file", errors.ErrMissingConfig),
			"security", "Validate", "client certificate")
	}
	return nil
}

func validateMinVersion(v string) error {
	switch v {
	case "", "1.2", "1.3":
		return nil
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: min_version %q, want 1.2 or 1.3", errors.ErrInvalidConfig, v),
		"security", "Validate", "min version")
}
