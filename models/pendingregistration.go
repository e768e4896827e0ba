package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegistrationState is the explicit state of an unconfirmed registration.
// Legality of every step is decided here, never inferred from which hash
// fields happen to be set.
type RegistrationState string

// Registration states. There is no stored "completed" state: completing the
// phone step promotes the document to an Account and deletes it. Expiry is
// detected lazily at read time.
const (
	RegistrationInitiated     RegistrationState = "initiated"
	RegistrationEmailVerified RegistrationState = "email_verified"
)

// PendingRegistration holds the structure for the pendingRegistrations
// collection in mongo. One document per normalized email. The plaintext
// codes are never stored, only their bcrypt hashes.
type PendingRegistration struct {
	ID                  primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email               string             `json:"email" bson:"email"`
	Name                string             `json:"name" bson:"name"`
	Role                Role               `json:"role" bson:"role"`
	PasswordHash        string             `json:"-" bson:"passwordHash"`
	Phone               string             `json:"phone" bson:"phone"`
	Postcode            string             `json:"postcode" bson:"postcode"`
	TradingName         string             `json:"tradingName,omitempty" bson:"tradingName,omitempty"`
	TownCity            string             `json:"townCity,omitempty" bson:"townCity,omitempty"`
	Address             string             `json:"address,omitempty" bson:"address,omitempty"`
	TravelDistanceMiles int                `json:"travelDistanceMiles,omitempty" bson:"travelDistanceMiles,omitempty"`
	ReferralCode        string             `json:"referralCode,omitempty" bson:"referralCode,omitempty"`

	State              RegistrationState `json:"state" bson:"state"`
	EmailCodeHash      string            `json:"-" bson:"emailCodeHash,omitempty"`
	EmailCodeExpiresAt *time.Time        `json:"-" bson:"emailCodeExpiresAt,omitempty"`
	PhoneCodeHash      string            `json:"-" bson:"phoneCodeHash,omitempty"`
	PhoneCodeExpiresAt *time.Time        `json:"-" bson:"phoneCodeExpiresAt,omitempty"`
	LastCodeSentAt     time.Time         `json:"-" bson:"lastCodeSentAt"`

	// ExpiresAt bounds the whole document regardless of the individual code
	// expiries. A TTL index on this field prunes abandoned documents as a
	// backstop, but callers must not rely on the sweep having run.
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// PendingRegistrationLifetime is the absolute lifetime of an unconfirmed
// registration.
const PendingRegistrationLifetime = 30 * time.Minute

// Expired reports whether the document as a whole is dead, independent of
// the individual code expiries.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// EmailCodeExpired reports whether the email challenge can no longer be
// answered.
func (p *PendingRegistration) EmailCodeExpired(now time.Time) bool {
	if p.Expired(now) {
		return true
	}
	return p.EmailCodeExpiresAt != nil && now.After(*p.EmailCodeExpiresAt)
}

// PhoneCodeExpired reports whether the phone challenge can no longer be
// answered.
func (p *PendingRegistration) PhoneCodeExpired(now time.Time) bool {
	if p.Expired(now) {
		return true
	}
	return p.PhoneCodeExpiresAt != nil && now.After(*p.PhoneCodeExpiresAt)
}

// Advance moves the registration to the target state, rejecting any
// transition the flow does not allow. The email code is consumed one-shot on
// the initiated -> email_verified step; the caller is expected to store the
// freshly issued phone code at the same time.
func (p *PendingRegistration) Advance(target RegistrationState) error {
	switch {
	case p.State == RegistrationInitiated && target == RegistrationEmailVerified:
		p.State = RegistrationEmailVerified
		p.EmailCodeHash = ""
		p.EmailCodeExpiresAt = nil
		return nil
	default:
		return fmt.Errorf("illegal registration transition %q -> %q", p.State, target)
	}
}
