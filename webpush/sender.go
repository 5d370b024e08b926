// Package webpush delivers encrypted push messages to browser endpoints
// using each client's own VAPID keypair.
package webpush

import (
	"context"
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/adwatch/adwatch/errors"
)

// messageTTL is how long push services may hold an undelivered message.
const messageTTL = 86400 // seconds

// ErrClientGone indicates the push service no longer knows the endpoint
// (HTTP 404/410). The subscription is dead and retrying is pointless.
var ErrClientGone = errors.New("push endpoint gone")

// IsClientGone checks if an error is or wraps ErrClientGone.
func IsClientGone(err error) bool {
	return err != nil && errors.Is(err, ErrClientGone)
}

// Sender delivers web-push messages. Safe for concurrent use; the
// underlying HTTP client pools connections.
type Sender struct {
	subscriber string
	logger     *zap.SugaredLogger
}

// NewSender creates a sender. subscriber is the VAPID "sub" claim, a
// mailto: or https: URL identifying the operator to push services.
func NewSender(subscriber string, logger *zap.SugaredLogger) *Sender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sender{
		subscriber: subscriber,
		logger:     logger.Named("webpush"),
	}
}

// Send delivers message to the endpoint described by pushSub (the JSON
// subscription blob the browser registered), signed with the client's
// VAPID private key in PEM form. Success means the push service accepted
// the message (HTTP 201). A 404/410 response returns ErrClientGone; any
// other failure is transient from the caller's point of view.
func (s *Sender) Send(ctx context.Context, pushSub string, vapidPrivPEM []byte, message string) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(pushSub), &sub); err != nil {
		return errors.Wrap(err, "decode push subscription")
	}

	priv, pub, err := vapidKeysFromPEM(vapidPrivPEM)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, []byte(message), &sub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		TTL:             messageTTL,
	})
	if err != nil {
		return errors.Wrap(err, "send push notification")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errors.Wrapf(ErrClientGone, "push service returned %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.Newf("push service returned %d", resp.StatusCode)
	}

	s.logger.Debugw("Push delivered", "status", resp.StatusCode)
	return nil
}
