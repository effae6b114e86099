package sec

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	c, err := NewXChaCha20Poly1305CipherBase64(key)
	require.NoError(t, err)

	token, err := c.EncryptEncode([]byte("artifact-1"), []byte("download"))
	require.NoError(t, err)
	plain, err := c.DecodeDecrypt(token, []byte("download"))
	require.NoError(t, err)
	assert.Equal(t, "artifact-1", string(plain))

	_, err = c.DecodeDecrypt(token, []byte("other"))
	assert.Error(t, err)

	_, err = c.DecodeDecrypt("AAAA", nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestCipherKeySize(t *testing.T) {
	_, err := NewXChaCha20Poly1305CipherBase64([]byte("short"))
	assert.Error(t, err)
	_, err = NewXChaCha20Poly1305CipherFromSecret("AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8")
	assert.NoError(t, err)
}

func TestOperatorTokens(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, SavePublicPEMKeyLocal(filepath.Join(dir, "k1_public.pem"), &priv.PublicKey))
	require.NoError(t, SavePrivatePEMKeyLocal(filepath.Join(dir, "k1_private.pem"), priv))

	jwks, err := LoadPublicPEMKeysAsJWKS(dir)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "k1", jwks.Keys[0].Kid)

	loaded, err := LoadLocalPrivatePEMKey(filepath.Join(dir, "k1_private.pem"))
	require.NoError(t, err)

	v, err := NewVerifier("docprint", jwks)
	require.NoError(t, err)

	signed, err := SignOperatorToken("docprint", "ops@example.com", "export", loaded, "k1", time.Minute)
	require.NoError(t, err)
	claims, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "export", claims.Scope)

	expired, err := SignOperatorToken("docprint", "ops", "", priv, "k1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	wrongKid, err := SignOperatorToken("docprint", "ops", "", priv, "k2", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongKid)
	assert.Error(t, err)

	wrongIss, err := SignOperatorToken("elsewhere", "ops", "", priv, "k1", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongIss)
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "", ExtractBearerToken("Basic abc"))
	assert.Equal(t, "", ExtractBearerToken("Bearer "))
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(16)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
}
