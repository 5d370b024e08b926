package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalTestKey(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func TestVAPIDKeysFromPEM(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	priv, pub, err := vapidKeysFromPEM(marshalTestKey(t, key))
	require.NoError(t, err)

	scalar, err := base64.RawURLEncoding.DecodeString(priv)
	require.NoError(t, err)
	assert.Len(t, scalar, 32)

	point, err := base64.RawURLEncoding.DecodeString(pub)
	require.NoError(t, err)
	require.Len(t, point, 65)
	assert.Equal(t, byte(0x04), point[0])

	x, y := elliptic.Unmarshal(elliptic.P256(), point)
	require.NotNil(t, x)
	assert.Zero(t, key.X.Cmp(x))
	assert.Zero(t, key.Y.Cmp(y))
}

func TestVAPIDKeysFromPEMRejectsGarbage(t *testing.T) {
	_, _, err := vapidKeysFromPEM([]byte("not a pem block"))
	require.Error(t, err)

	_, _, err = vapidKeysFromPEM(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1, 2, 3}}))
	require.Error(t, err)
}

func TestVAPIDKeysFromPEMRejectsWrongCurve(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	_, _, err = vapidKeysFromPEM(marshalTestKey(t, key))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curve")
}
