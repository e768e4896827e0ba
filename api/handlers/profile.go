package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/notifier"
	"github.com/tradelink-app/tradelink-api/otp"
	"github.com/tradelink-app/tradelink-api/sessions"
)

// Profile serves the signed-in account's profile and the in-place email and
// phone change flow. A change is challenged against the new value first; the
// account document only moves when the verified change is saved.
type Profile struct {
	ADB      databases.AccountDatabase
	Sessions *sessions.Store
	Notifier notifier.Notifier
	Policy   notifier.FailurePolicy
}

type changeRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type changeVerifyRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type saveProfileRequest struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Postcode            string `json:"postcode"`
	TradingName         string `json:"tradingName"`
	TownCity            string `json:"townCity"`
	Address             string `json:"address"`
	TravelDistanceMiles int    `json:"travelDistanceMiles"`
}

func validChangeType(t string) bool {
	return t == "email" || t == "phone"
}

// accountFromSession loads the signed-in account. A nil return means a
// response was already written.
func (u Profile) accountFromSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) *models.Account {
	oid, err := primitive.ObjectIDFromHex(sess.AccountID)
	if err != nil {
		config.ErrorStatus("invalid session", http.StatusUnauthorized, w, err)
		return nil
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	account, err := u.ADB.FindOne(ctx, bson.M{"_id": oid})
	if err == mongo.ErrNoDocuments {
		config.ErrorStatus("account not found", http.StatusUnauthorized, w, nil)
		return nil
	}
	if err != nil {
		config.ErrorStatus("failed to load account", http.StatusInternalServerError, w, err)
		return nil
	}
	return account
}

// GetProfileHandler returns the profile. Accounts that predate challenge
// tracking get their email and phone records backfilled as verified, since
// both were proven at signup.
func (u Profile) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess := api.SessionFrom(r.Context())
	account := u.accountFromSession(w, r, sess)
	if account == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	now := time.Now().UTC()

	backfill := bson.M{}
	if account.Email != "" && account.Verification.Email.Status == models.StatusNotStarted {
		account.Verification.Email.Status = models.StatusVerified
		account.Verification.Email.VerifiedAt = &now
		backfill["verification.email"] = account.Verification.Email
	}
	if account.Phone != "" && account.Verification.Phone.Status == models.StatusNotStarted {
		account.Verification.Phone.Status = models.StatusVerified
		account.Verification.Phone.VerifiedAt = &now
		backfill["verification.phone"] = account.Verification.Phone
	}
	if len(backfill) > 0 {
		if err := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID}, bson.M{"$set": backfill}); err != nil {
			zap.S().With(err).Error("failed to backfill verification records")
		}
	}

	respondJSON(w, http.StatusOK, account)
}

// RequestChangeHandler starts an email or phone change by challenging the new
// value. Nothing on the account moves yet.
func (u Profile) RequestChangeHandler(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if !validChangeType(req.Type) {
		config.ErrorStatus("change type must be email or phone", http.StatusBadRequest, w, nil)
		return
	}
	if req.Type == "email" {
		req.Value = normalizeEmail(req.Value)
	}
	if req.Value == "" {
		config.ErrorStatus("missing new value", http.StatusBadRequest, w, nil)
		return
	}

	sess := api.SessionFrom(r.Context())
	account := u.accountFromSession(w, r, sess)
	if account == nil {
		return
	}

	if (req.Type == "email" && req.Value == account.Email) ||
		(req.Type == "phone" && req.Value == account.Phone) {
		config.ErrorStatus("new value matches the current one", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if req.Type == "email" {
		if _, err := u.ADB.FindOne(ctx, bson.M{"email": req.Value}); err == nil {
			config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, nil)
			return
		} else if err != mongo.ErrNoDocuments {
			config.ErrorStatus("failed to check for existing account", http.StatusInternalServerError, w, err)
			return
		}
	}

	code, codeHash, codeExpiry, err := otp.Issue()
	if err != nil {
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}

	if req.Type == "email" {
		err = u.Notifier.SendEmailCode(ctx, req.Value, code)
	} else {
		err = u.Notifier.SendSMSCode(ctx, req.Value, code)
	}
	if err != nil {
		if perr := u.Policy.OnDeliveryFailure(req.Type+" change code", err); perr != nil {
			config.ErrorStatus("failed to deliver verification code", http.StatusBadGateway, w, perr)
			return
		}
	}

	sess.SetChangeEntry(req.Type, &sessions.ChangeOTP{
		Value:     req.Value,
		CodeHash:  codeHash,
		ExpiresAt: codeExpiry,
	})
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"type":      req.Type,
		"code":      code,
		"expiresAt": codeExpiry,
	})
}

// VerifyChangeHandler answers a change challenge. Success only marks the
// session entry verified; the account is untouched until the profile is
// saved.
func (u Profile) VerifyChangeHandler(w http.ResponseWriter, r *http.Request) {
	var req changeVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if !validChangeType(req.Type) {
		config.ErrorStatus("change type must be email or phone", http.StatusBadRequest, w, nil)
		return
	}

	sess := api.SessionFrom(r.Context())
	entry := sess.ChangeEntry(req.Type)
	if entry == nil {
		config.ErrorStatus("no pending change of this type", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if entry.Expired(time.Now().UTC()) {
		sess.SetChangeEntry(req.Type, nil)
		if err := u.Sessions.Save(ctx, sess); err != nil {
			config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
			return
		}
		config.ErrorStatus("verification code expired, request the change again", http.StatusGone, w, nil)
		return
	}
	if !otp.Verify(req.Code, entry.CodeHash) {
		config.ErrorStatus("incorrect verification code", http.StatusBadRequest, w, nil)
		return
	}

	entry.Verified = true
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"type":     req.Type,
		"verified": true,
	})
}

// SaveProfileHandler applies profile edits. Email and phone only move when
// they match a verified change entry, which is consumed by the save.
func (u Profile) SaveProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req saveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = normalizeEmail(req.Email)

	sess := api.SessionFrom(r.Context())
	account := u.accountFromSession(w, r, sess)
	if account == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	now := time.Now().UTC()

	set := bson.M{}
	if req.Name != "" && req.Name != account.Name {
		set["name"] = req.Name
	}
	if req.Postcode != "" && req.Postcode != account.Postcode {
		set["postcode"] = req.Postcode
	}
	if account.Role == models.RoleProfessional {
		if req.TradingName != "" && req.TradingName != account.TradingName {
			set["tradingName"] = req.TradingName
		}
		if req.TownCity != "" && req.TownCity != account.TownCity {
			set["townCity"] = req.TownCity
		}
		if req.Address != "" && req.Address != account.Address {
			set["address"] = req.Address
		}
		if req.TravelDistanceMiles > 0 && req.TravelDistanceMiles != account.TravelDistanceMiles {
			set["travelDistanceMiles"] = req.TravelDistanceMiles
		}
	}

	consumed := false
	if req.Email != "" && req.Email != account.Email {
		entry := sess.EmailChange
		if entry == nil || !entry.Verified || entry.Value != req.Email {
			config.ErrorStatus("email change has not been verified", http.StatusForbidden, w, nil)
			return
		}
		// the address could have been claimed since the challenge
		if _, err := u.ADB.FindOne(ctx, bson.M{"email": req.Email}); err == nil {
			config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, nil)
			return
		} else if err != mongo.ErrNoDocuments {
			config.ErrorStatus("failed to check for existing account", http.StatusInternalServerError, w, err)
			return
		}
		set["email"] = req.Email
		set["verification.email"] = models.VerificationRecord{Status: models.StatusVerified, VerifiedAt: &now}
		sess.EmailChange = nil
		consumed = true
	}
	if req.Phone != "" && req.Phone != account.Phone {
		entry := sess.PhoneChange
		if entry == nil || !entry.Verified || entry.Value != req.Phone {
			config.ErrorStatus("phone change has not been verified", http.StatusForbidden, w, nil)
			return
		}
		set["phone"] = req.Phone
		set["verification.phone"] = models.VerificationRecord{Status: models.StatusVerified, VerifiedAt: &now}
		sess.PhoneChange = nil
		consumed = true
	}

	if len(set) > 0 {
		if err := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID}, databases.Touch(set)); err != nil {
			config.ErrorStatus("failed to update profile", http.StatusInternalServerError, w, err)
			return
		}
	}
	if consumed {
		if err := u.Sessions.Save(ctx, sess); err != nil {
			config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
			return
		}
	}

	updated := u.accountFromSession(w, r, sess)
	if updated == nil {
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
