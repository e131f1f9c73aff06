package discover

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/broker/config"
)

func TestNewClientRequiresEndpoints(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints")
}

func TestNewClientFromEnvUnset(t *testing.T) {
	t.Setenv("TOOLMESH_ETCD_ENDPOINTS", "")

	client, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestConfigFromYAML(t *testing.T) {
	t.Run("nil section", func(t *testing.T) {
		cfg := ConfigFromYAML(nil)
		assert.Empty(t, cfg.Endpoints)
		assert.Nil(t, cfg.TLS)
	})

	t.Run("endpoints only", func(t *testing.T) {
		cfg := ConfigFromYAML(&config.EtcdConfig{
			Endpoints: []string{"etcd-1:2379", "etcd-2:2379"},
		})
		assert.Len(t, cfg.Endpoints, 2)
		assert.Nil(t, cfg.TLS)
	})

	t.Run("tls material enables tls", func(t *testing.T) {
		cfg := ConfigFromYAML(&config.EtcdConfig{
			Endpoints: []string{"etcd-1:2379"},
			CertFile:  "/certs/client.pem",
			KeyFile:   "/certs/client-key.pem",
			CAFile:    "/certs/ca.pem",
		})
		require.NotNil(t, cfg.TLS)
		assert.True(t, cfg.TLS.Enabled)
		assert.Equal(t, "/certs/client.pem", cfg.TLS.CertFile)
	})
}

func TestNewTLSInfo(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		info, err := newTLSInfo(&TLSConfig{Enabled: false})
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("missing cert file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, KeyFile: "k", CAFile: "ca"})
		require.Error(t, err)
	})

	t.Run("missing key file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, CertFile: "c", CAFile: "ca"})
		require.Error(t, err)
	})

	t.Run("missing ca file", func(t *testing.T) {
		_, err := newTLSInfo(&TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"})
		require.Error(t, err)
	})
}

// writeTestCert generates a self-signed certificate and writes the cert
// and key PEM files into dir.
func writeTestCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPath = filepath.Join(dir, "key.pem")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	return certPath, keyPath
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeTestCert(t, dir)

	info, err := newTLSInfo(&TLSConfig{
		Enabled:  true,
		CertFile: certPath,
		KeyFile:  keyPath,
		CAFile:   certPath,
	})
	require.NoError(t, err)

	tlsCfg, err := info.ClientConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)
}

func TestClientConfigBadFiles(t *testing.T) {
	info := &tlsInfo{
		CertFile: filepath.Join(t.TempDir(), "missing.pem"),
		KeyFile:  filepath.Join(t.TempDir(), "missing-key.pem"),
		CAFile:   filepath.Join(t.TempDir(), "missing-ca.pem"),
	}
	_, err := info.ClientConfig()
	require.Error(t, err)
}

func TestBuildKey(t *testing.T) {
	c := &Client{namespace: "toolmesh"}
	assert.Equal(t, "/toolmesh/tools/get_alerts/w-1", c.buildKey("get_alerts", "w-1"))
}
