package alerts

import (
	"context"
	"errors"
	"fmt"

	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// Transport sends a message to a recipient over one channel.
type Transport interface {
	Channel() Channel
	Send(ctx context.Context, to Recipient, msg Message) error
}

// ErrNoDestination is returned when the recipient has no address for the channel.
var ErrNoDestination = errors.New("recipient has no destination for channel")

// DeliveryError carries the transport's failure classification.
// Permanent failures disable the channel for the recipient.
type DeliveryError struct {
	Channel   Channel
	Permanent bool
	Reason    string
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s delivery failure (%s): %v", kind, e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s delivery failure (%s)", kind, e.Channel, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}

func permanent(ch Channel, reason string, err error) error {
	return &DeliveryError{Channel: ch, Permanent: true, Reason: reason, Err: err}
}

func transient(ch Channel, reason string, err error) error {
	return &DeliveryError{Channel: ch, Reason: reason, Err: err}
}

// NewTransports returns the configured channels in preference order: sms, then email.
func NewTransports(sms config.SMSConfig, smtp config.SMTPConfig, log *logger.Logger) []Transport {
	var out []Transport
	if c := NewSMSClient(sms, log); c != nil {
		out = append(out, c)
	}
	if s := NewEmailSender(smtp); s != nil {
		out = append(out, s)
	}
	return out
}
