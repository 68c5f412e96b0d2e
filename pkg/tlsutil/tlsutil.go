// Package tlsutil builds crypto/tls configurations from security settings.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"slices"

	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/pkg/security"
)

// LoadServerTLSConfig returns the listener TLS config, or nil when TLS is
// disabled. Client certificate checks are applied when cfg.MTLS is enabled.
func LoadServerTLSConfig(cfg security.ServerTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerTLSConfig", "load certificate")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}
	if cfg.MTLS.Enabled {
		if err := applyMTLSConfig(tlsConfig, cfg.MTLS); err != nil {
			return nil, err
		}
	}
	return tlsConfig, nil
}

// LoadClientTLSConfig returns a client TLS config trusting the system pool
// plus cfg.CAFiles, presenting a client certificate when cfg.MTLS is enabled.
func LoadClientTLSConfig(cfg security.ClientTLSConfig) (*tls.Config, error) {
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if err := appendCAFiles(rootCAs, cfg.CAFiles, "LoadClientTLSConfig"); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
	}

	if cfg.MTLS.Enabled {
		clientCert, err := tls.LoadX509KeyPair(cfg.MTLS.CertFile, cfg.MTLS.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}
	return tlsConfig, nil
}

func applyMTLSConfig(tlsConfig *tls.Config, mtlsCfg security.ServerMTLSConfig) error {
	clientCAs := x509.NewCertPool()
	if err := appendCAFiles(clientCAs, mtlsCfg.ClientCAFiles, "applyMTLSConfig"); err != nil {
		return err
	}

	tlsConfig.ClientCAs = clientCAs
	if mtlsCfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	if len(mtlsCfg.AllowedClientCNs) > 0 {
		allowed := slices.Clone(mtlsCfg.AllowedClientCNs)
		tlsConfig.VerifyPeerCertificate = func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
			// optional client certs that were not sent have no chains
			if len(verifiedChains) == 0 && !mtlsCfg.RequireClientCert {
				return nil
			}
			return verifyAllowedClientCN(verifiedChains, allowed)
		}
	}
	return nil
}

func appendCAFiles(pool *x509.CertPool, files []string, method string) error {
	for _, caFile := range files {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return errors.WrapFatal(err, "tlsutil", method, fmt.Sprintf("read CA file %s", caFile))
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return errors.WrapFatal(fmt.Errorf("%w: no PEM certificates", errors.ErrInvalidData),
				"tlsutil", method, fmt.Sprintf("parse CA file %s", caFile))
		}
	}
	return nil
}

func verifyAllowedClientCN(chains [][]*x509.Certificate, allowedCNs []string) error {
	if len(chains) == 0 || len(chains[0]) == 0 {
		return fmt.Errorf("no verified certificate chains")
	}

	cn := chains[0][0].Subject.CommonName
	if slices.Contains(allowedCNs, cn) {
		return nil
	}
	return fmt.Errorf("client certificate CN %q not in allowed list", cn)
}

// parseTLSVersion maps "1.3" to TLS 1.3 and anything else to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
