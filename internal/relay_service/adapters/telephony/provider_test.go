package telephony

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	logger := testLogger()

	t.Run("Mock", func(t *testing.T) {
		p, err := NewProvider("Mock", VonageConfig{}, "", logger)
		require.NoError(t, err)
		assert.Equal(t, "mock", p.GetName())
	})

	t.Run("VonageFromKeyFile", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "private.key")
		keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		require.NoError(t, os.WriteFile(path, keyPEM, 0o600))

		p, err := NewProvider("vonage", VonageConfig{APIKey: "k", APISecret: "s", ApplicationID: "app"}, path, logger)
		require.NoError(t, err)
		assert.Equal(t, "vonage", p.GetName())
	})

	t.Run("MissingKeyFile", func(t *testing.T) {
		_, err := NewProvider("vonage", VonageConfig{}, filepath.Join(t.TempDir(), "absent.key"), logger)
		assert.ErrorContains(t, err, "read vonage private key")
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := NewProvider("twilio", VonageConfig{}, "", logger)
		assert.Error(t, err)
	})
}
