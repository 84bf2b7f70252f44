package crypto

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

func testPEMKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	pemKey := testPEMKey(t)

	blob, err := EncryptKeyPEM(pemKey, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "PRIVATE KEY")

	got, err := DecryptKeyPEM(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, pemKey, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKeyPEM(testPEMKey(t), "hunter2")
	require.NoError(t, err)

	_, err = DecryptKeyPEM(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptRejectsNonPEM(t *testing.T) {
	_, err := EncryptKeyPEM([]byte("deadbeef"), "pw")
	require.Error(t, err)
}

func TestEncryptRejectsEmptyPassword(t *testing.T) {
	_, err := EncryptKeyPEM(testPEMKey(t), "")
	require.Error(t, err)
}

func TestLoadKeyPEMPlaintextFile(t *testing.T) {
	pemKey := testPEMKey(t)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))

	got, err := LoadKeyPEM(KeyConfig{KeyPath: path})
	require.NoError(t, err)
	assert.Equal(t, pemKey, got)
}

func TestLoadKeyPEMEncryptedFile(t *testing.T) {
	pemKey := testPEMKey(t)
	blob, err := EncryptKeyPEM(pemKey, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.enc.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKeyPEM(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, pemKey, got)
}

func TestLoadKeyPEMNoSource(t *testing.T) {
	_, err := LoadKeyPEM(KeyConfig{})
	require.Error(t, err)
}
