package webpush

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	"github.com/adwatch/adwatch/errors"
)

// vapidKeysFromPEM converts a stored P-256 private key in PEM form to the
// base64url (unpadded) scalar and uncompressed public point the push
// library expects.
func vapidKeysFromPEM(privPEM []byte) (priv, pub string, err error) {
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return "", "", errors.New("no PEM block in VAPID private key")
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return "", "", errors.Wrap(err, "parse VAPID private key")
	}
	if key.Curve != elliptic.P256() {
		return "", "", errors.Newf("VAPID key on unexpected curve %s", key.Curve.Params().Name)
	}

	// The scalar must be exactly 32 bytes, left-padded.
	d := key.D.Bytes()
	scalar := make([]byte, 32)
	copy(scalar[32-len(d):], d)

	point := elliptic.Marshal(elliptic.P256(), key.X, key.Y)

	return base64.RawURLEncoding.EncodeToString(scalar),
		base64.RawURLEncoding.EncodeToString(point),
		nil
}
