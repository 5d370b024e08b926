// Package session issues per-client credentials: a P-256 VAPID keypair
// and an opaque session id derived from it. The session id is the
// user-held capability; the store only ever indexes its hash.
package session

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"time"

	"go.uber.org/zap"

	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/store"
)

// Session is what a freshly registered client receives: the opaque id it
// presents on every call, and its VAPID public key (base64url, unpadded)
// for the browser's push subscription.
type Session struct {
	ID       string `json:"sessionId"`
	VAPIDPub string `json:"vapidPub"`
}

// Issuer creates client sessions. Expired sessions are swept before each
// insert so the clients table stays bounded without a dedicated worker.
type Issuer struct {
	store      *store.Store
	expiration time.Duration
	logger     *zap.SugaredLogger
}

// NewIssuer creates an issuer over the store.
func NewIssuer(s *store.Store, expiration time.Duration, logger *zap.SugaredLogger) *Issuer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Issuer{
		store:      s,
		expiration: expiration,
		logger:     logger.Named("session"),
	}
}

// Create generates a fresh keypair, registers the client and returns its
// session.
func (i *Issuer) Create() (*Session, error) {
	removed, err := i.store.CleanupSessions(i.expiration)
	if err != nil {
		return nil, errors.Wrap(err, "cleanup expired sessions")
	}
	if removed > 0 {
		i.logger.Infow("Removed expired sessions", "count", removed)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate VAPID keypair")
	}

	// Uncompressed SEC1 point, 65 bytes.
	vapidPub := elliptic.Marshal(elliptic.P256(), key.X, key.Y)

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "marshal VAPID private key")
	}
	vapidPriv := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	// The session id is bound to the keypair: 64 hex chars of
	// SHA-256(pub || priv). High-entropy, never stored in the clear.
	sum := sha256.Sum256(append(append([]byte{}, vapidPub...), vapidPriv...))
	sessionID := hex.EncodeToString(sum[:])

	if err := i.store.CreateSession(vapidPub, vapidPriv, sessionID); err != nil {
		return nil, errors.Wrap(err, "persist session")
	}

	i.logger.Debugw("Issued session")
	return &Session{
		ID:       sessionID,
		VAPIDPub: base64.RawURLEncoding.EncodeToString(vapidPub),
	}, nil
}
