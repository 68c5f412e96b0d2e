package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/pkg/security"
	"github.com/TSherpa10/moodzy/testutil"
)

func TestLoadServerTLSConfig(t *testing.T) {
	certFile, keyFile := testutil.WriteCert(t, "localhost")
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pem"), 0o600))

	tests := []struct {
		name    string
		cfg     security.ServerTLSConfig
		wantNil bool
		wantErr bool
		check   func(t *testing.T, c *tls.Config)
	}{
		{
			name:    "disabled",
			cfg:     security.ServerTLSConfig{CertFile: certFile, KeyFile: keyFile},
			wantNil: true,
		},
		{
			name: "defaults to tls 1.2",
			cfg:  security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
			check: func(t *testing.T, c *tls.Config) {
				assert.Len(t, c.Certificates, 1)
				assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
				assert.Equal(t, tls.NoClientCert, c.ClientAuth)
			},
		},
		{
			name: "tls 1.3",
			cfg:  security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, MinVersion: "1.3"},
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
			},
		},
		{
			name: "required client certs",
			cfg: security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile,
				MTLS: security.ServerMTLSConfig{Enabled: true, ClientCAFiles: []string{certFile}, RequireClientCert: true}},
			check: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.ClientCAs)
				assert.Equal(t, tls.RequireAndVerifyClientCert, c.ClientAuth)
				assert.Nil(t, c.VerifyPeerCertificate)
			},
		},
		{
			name: "optional client certs with CN list",
			cfg: security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile,
				MTLS: security.ServerMTLSConfig{Enabled: true, ClientCAFiles: []string{certFile}, AllowedClientCNs: []string{"watcher"}}},
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, tls.VerifyClientCertIfGiven, c.ClientAuth)
				assert.NotNil(t, c.VerifyPeerCertificate)
				assert.NoError(t, c.VerifyPeerCertificate(nil, nil), "no cert offered")
			},
		},
		{
			name:    "missing key",
			cfg:     security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: "/nonexistent/key.pem"},
			wantErr: true,
		},
		{
			name: "missing client CA",
			cfg: security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile,
				MTLS: security.ServerMTLSConfig{Enabled: true, ClientCAFiles: []string{"/nonexistent/ca.pem"}}},
			wantErr: true,
		},
		{
			name: "client CA without PEM",
			cfg: security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile,
				MTLS: security.ServerMTLSConfig{Enabled: true, ClientCAFiles: []string{garbage}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadServerTLSConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsFatal(err))
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			tt.check(t, c)
		})
	}
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile := testutil.WriteCert(t, "watcher")

	c, err := LoadClientTLSConfig(security.ClientTLSConfig{})
	require.NoError(t, err)
	assert.NotNil(t, c.RootCAs)
	assert.False(t, c.InsecureSkipVerify)
	assert.Empty(t, c.Certificates)

	c, err = LoadClientTLSConfig(security.ClientTLSConfig{
		CAFiles:            []string{certFile},
		InsecureSkipVerify: true,
		MinVersion:         "1.3",
		MTLS:               security.ClientMTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile},
	})
	require.NoError(t, err)
	assert.True(t, c.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
	assert.Len(t, c.Certificates, 1)

	_, err = LoadClientTLSConfig(security.ClientTLSConfig{CAFiles: []string{"/nonexistent/ca.pem"}})
	assert.True(t, errors.IsFatal(err))

	_, err = LoadClientTLSConfig(security.ClientTLSConfig{
		MTLS: security.ClientMTLSConfig{Enabled: true, CertFile: certFile, KeyFile: "/nonexistent/key.pem"},
	})
	assert.True(t, errors.IsFatal(err))
}

func TestVerifyAllowedClientCN(t *testing.T) {
	chain := func(cn string) [][]*x509.Certificate {
		return [][]*x509.Certificate{{{Subject: pkix.Name{CommonName: cn}}}}
	}

	assert.NoError(t, verifyAllowedClientCN(chain("watcher"), []string{"ops", "watcher"}))
	assert.ErrorContains(t, verifyAllowedClientCN(chain("intruder"), []string{"watcher"}), `"intruder"`)
	assert.Error(t, verifyAllowedClientCN(nil, []string{"watcher"}))
}

func TestMTLSHandshake(t *testing.T) {
	serverCert, serverKey := testutil.WriteCert(t, "localhost")
	clientCert, clientKey := testutil.WriteCert(t, "watcher")
	otherCert, otherKey := testutil.WriteCert(t, "intruder")

	serverTLS, err := LoadServerTLSConfig(security.ServerTLSConfig{
		Enabled:  true,
		CertFile: serverCert,
		KeyFile:  serverKey,
		MTLS: security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{clientCert, otherCert},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"watcher"},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	}))
	srv.TLS = serverTLS
	srv.StartTLS()
	t.Cleanup(srv.Close)

	get := func(certFile, keyFile string) (string, error) {
		cfg := security.ClientTLSConfig{CAFiles: []string{serverCert}}
		if certFile != "" {
			cfg.MTLS = security.ClientMTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}
		}
		clientTLS, err := LoadClientTLSConfig(cfg)
		require.NoError(t, err)
		client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}
		resp, err := client.Get(srv.URL)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return string(body), err
	}

	body, err := get(clientCert, clientKey)
	require.NoError(t, err)
	assert.Equal(t, "watcher", body)

	_, err = get(otherCert, otherKey)
	assert.Error(t, err, "CN not allowed")

	_, err = get("", "")
	assert.Error(t, err, "no client certificate")
}
