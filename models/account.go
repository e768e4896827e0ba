package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the account role stored on every user document.
type Role string

// Account roles. Admin accounts exist for the review console and are
// rejected by every consumer-facing endpoint in this service.
const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Valid reports whether the role is one a visitor may register with.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProfessional
}

// VerificationStatus is the per-dimension review status.
type VerificationStatus string

// Verification dimension statuses.
const (
	StatusNotStarted           VerificationStatus = "not-started"
	StatusPending              VerificationStatus = "pending"
	StatusVerified             VerificationStatus = "verified"
	StatusDenied               VerificationStatus = "denied"
	StatusRequiredModification VerificationStatus = "required-modification"
)

// VerificationRecord tracks the state of a single verification dimension.
type VerificationRecord struct {
	Status          VerificationStatus `json:"status" bson:"status"`
	VerifiedAt      *time.Time         `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
	DocumentURL     string             `json:"documentUrl,omitempty" bson:"documentUrl,omitempty"`
	DocumentName    string             `json:"documentName,omitempty" bson:"documentName,omitempty"`
	RejectionReason string             `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	MaskedCard      string             `json:"maskedCard,omitempty" bson:"maskedCard,omitempty"`
}

// ApplyDecision moves a record from pending to a reviewer-decided terminal
// status. Any other transition is rejected so a stale or duplicate reviewer
// callback cannot clobber state.
func (r *VerificationRecord) ApplyDecision(status VerificationStatus, reason string, now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("cannot apply review decision from status %q", r.Status)
	}
	switch status {
	case StatusVerified:
		r.Status = StatusVerified
		r.VerifiedAt = &now
		r.RejectionReason = ""
	case StatusDenied, StatusRequiredModification:
		r.Status = status
		r.VerifiedAt = nil
		r.RejectionReason = reason
	default:
		return fmt.Errorf("invalid review decision %q", status)
	}
	return nil
}

// MarkUploaded records a fresh document submission. Resubmission always
// restarts review, so any prior rejection reason is discarded.
func (r *VerificationRecord) MarkUploaded(url, name string) {
	r.Status = StatusPending
	r.DocumentURL = url
	r.DocumentName = name
	r.VerifiedAt = nil
	r.RejectionReason = ""
	r.MaskedCard = ""
}

// Reset returns the dimension to its initial state, discarding the stored
// document reference.
func (r *VerificationRecord) Reset() {
	*r = VerificationRecord{Status: StatusNotStarted}
}

// Verification holds one record per checked dimension.
type Verification struct {
	Email                    VerificationRecord `json:"email" bson:"email"`
	Phone                    VerificationRecord `json:"phone" bson:"phone"`
	Address                  VerificationRecord `json:"address" bson:"address"`
	IDCard                   VerificationRecord `json:"idCard" bson:"idCard"`
	PaymentMethod            VerificationRecord `json:"paymentMethod" bson:"paymentMethod"`
	PublicLiabilityInsurance VerificationRecord `json:"publicLiabilityInsurance" bson:"publicLiabilityInsurance"`
}

// NewVerification returns a verification block with every dimension
// not-started.
func NewVerification() Verification {
	return Verification{
		Email:                    VerificationRecord{Status: StatusNotStarted},
		Phone:                    VerificationRecord{Status: StatusNotStarted},
		Address:                  VerificationRecord{Status: StatusNotStarted},
		IDCard:                   VerificationRecord{Status: StatusNotStarted},
		PaymentMethod:            VerificationRecord{Status: StatusNotStarted},
		PublicLiabilityInsurance: VerificationRecord{Status: StatusNotStarted},
	}
}

// Record returns a pointer to the record for the named dimension, or nil for
// an unknown dimension.
func (v *Verification) Record(dimension string) *VerificationRecord {
	switch dimension {
	case "email":
		return &v.Email
	case "phone":
		return &v.Phone
	case "address":
		return &v.Address
	case "idCard":
		return &v.IDCard
	case "paymentMethod":
		return &v.PaymentMethod
	case "publicLiabilityInsurance":
		return &v.PublicLiabilityInsurance
	}
	return nil
}

// LinkedProviderID returns the stored id for a social provider, or empty when
// that provider has never been linked.
func (a *Account) LinkedProviderID(provider string) string {
	switch provider {
	case "google":
		return a.GoogleID
	case "facebook":
		return a.FacebookID
	}
	return ""
}

// Account holds the structure for the accounts collection in mongo.
// PasswordHash is absent for pure social accounts.
type Account struct {
	ID                   primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email                string             `json:"email" bson:"email"`
	Name                 string             `json:"name" bson:"name"`
	Role                 Role               `json:"role" bson:"role"`
	PasswordHash         string             `json:"-" bson:"passwordHash,omitempty"`
	Phone                string             `json:"phone" bson:"phone"`
	Postcode             string             `json:"postcode" bson:"postcode"`
	TradingName          string             `json:"tradingName,omitempty" bson:"tradingName,omitempty"`
	TownCity             string             `json:"townCity,omitempty" bson:"townCity,omitempty"`
	Address              string             `json:"address,omitempty" bson:"address,omitempty"`
	TravelDistanceMiles  int                `json:"travelDistanceMiles,omitempty" bson:"travelDistanceMiles,omitempty"`
	ReferralCode         string             `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	GoogleID             string             `json:"-" bson:"googleId,omitempty"`
	FacebookID           string             `json:"-" bson:"facebookId,omitempty"`
	ResetPasswordToken   string             `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time         `json:"-" bson:"resetPasswordExpires,omitempty"`
	Verification         Verification       `json:"verification" bson:"verification"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updatedAt"`
}
