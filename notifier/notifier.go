// Package notifier is the boundary to the external email/SMS delivery
// collaborators. The contract is "deliver this code / this link"; transport
// details stay behind the Notifier interface. What happens when delivery
// fails is an operational policy selected once at startup, not an inline
// environment check.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers one-time codes and recovery links.
type Notifier interface {
	SendEmailCode(ctx context.Context, email, code string) error
	SendSMSCode(ctx context.Context, phone, code string) error
	SendResetLink(ctx context.Context, email, link string) error
}

// FailurePolicy decides what a delivery failure means for the calling
// operation. Strict propagates the error so the caller aborts and rolls
// back; Degraded logs and continues, accepting that the user may need the
// resend path.
type FailurePolicy interface {
	OnDeliveryFailure(op string, err error) error
}

type strictPolicy struct{}

func (strictPolicy) OnDeliveryFailure(op string, err error) error {
	return err
}

type degradedPolicy struct{}

func (degradedPolicy) OnDeliveryFailure(op string, err error) error {
	zap.S().Errorw("notifier delivery failed, continuing",
		"operation", op,
		"error", err,
	)
	return nil
}

// PolicyFromName maps the NOTIFIER_POLICY config value to a strategy.
// Unknown values fall back to strict, the safe pre-launch default.
func PolicyFromName(name string) FailurePolicy {
	if name == "degraded" {
		return degradedPolicy{}
	}
	return strictPolicy{}
}
