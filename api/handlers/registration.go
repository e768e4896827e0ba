package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/notifier"
	"github.com/tradelink-app/tradelink-api/otp"
	"github.com/tradelink-app/tradelink-api/sessions"
)

// ResendThrottle is the minimum gap between two code deliveries for one
// pending registration.
const ResendThrottle = time.Minute

// Registration exposes the signup state machine: initiate, verify email,
// verify phone, resend, plus password login and logout.
type Registration struct {
	ADB      databases.AccountDatabase
	PDB      databases.PendingRegistrationDatabase
	Sessions *sessions.Store
	Notifier notifier.Notifier
	Policy   notifier.FailurePolicy
}

type initiateRequest struct {
	Email               string      `json:"email"`
	Password            string      `json:"password"`
	Name                string      `json:"name"`
	Phone               string      `json:"phone"`
	Postcode            string      `json:"postcode"`
	Role                models.Role `json:"role"`
	AcceptedTerms       bool        `json:"acceptedTerms"`
	TradingName         string      `json:"tradingName"`
	TownCity            string      `json:"townCity"`
	Address             string      `json:"address"`
	TravelDistanceMiles int         `json:"travelDistanceMiles"`
	ReferralCode        string      `json:"referralCode"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// InitiateHandler starts a new registration. It rejects emails that already
// belong to an account, replaces any stale pending attempt for that email, and
// sends the first email code.
func (u Registration) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = normalizeEmail(req.Email)

	if req.Email == "" || req.Password == "" || req.Name == "" || req.Phone == "" {
		config.ErrorStatus("missing required registration fields", http.StatusBadRequest, w, nil)
		return
	}
	if len(req.Password) < 8 {
		config.ErrorStatus("password must be at least 8 characters", http.StatusBadRequest, w, nil)
		return
	}
	if !req.Role.Valid() {
		config.ErrorStatus("invalid role", http.StatusBadRequest, w, nil)
		return
	}
	if !req.AcceptedTerms {
		config.ErrorStatus("terms and conditions must be accepted", http.StatusBadRequest, w, nil)
		return
	}
	if req.Role == models.RoleProfessional {
		if req.TradingName == "" || req.TownCity == "" || req.Address == "" || req.TravelDistanceMiles <= 0 {
			config.ErrorStatus("missing required professional fields", http.StatusBadRequest, w, nil)
			return
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	taken, err := u.ADB.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		config.ErrorStatus("failed to check for existing account", http.StatusInternalServerError, w, err)
		return
	}
	if taken > 0 {
		config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, nil)
		return
	}

	// a fresh initiate replaces any earlier attempt with the same email;
	// best effort, the stale document expires on its own anyway
	if err := u.PDB.DeleteOne(ctx, bson.M{"email": req.Email}); err != nil {
		zap.S().With(err).Error("failed to clear previous registration attempt")
	}

	sess, err := u.Sessions.GetOrCreate(w, r)
	if err != nil {
		config.ErrorStatus("failed to open session", http.StatusInternalServerError, w, err)
		return
	}
	sess.PendingRegistrationID = ""

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	code, codeHash, codeExpiry, err := otp.Issue()
	if err != nil {
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	pending := models.PendingRegistration{
		ID:                  primitive.NewObjectID(),
		Email:               req.Email,
		Name:                req.Name,
		Role:                req.Role,
		PasswordHash:        string(passwordHash),
		Phone:               req.Phone,
		Postcode:            req.Postcode,
		TradingName:         req.TradingName,
		TownCity:            req.TownCity,
		Address:             req.Address,
		TravelDistanceMiles: req.TravelDistanceMiles,
		ReferralCode:        req.ReferralCode,
		State:               models.RegistrationInitiated,
		EmailCodeHash:       codeHash,
		EmailCodeExpiresAt:  &codeExpiry,
		LastCodeSentAt:      now,
		CreatedAt:           now,
		ExpiresAt:           now.Add(models.PendingRegistrationLifetime),
	}

	if _, err := u.PDB.InsertOne(ctx, pending); err != nil {
		config.ErrorStatus("failed to create pending registration", http.StatusInternalServerError, w, err)
		return
	}

	if err := u.Notifier.SendEmailCode(ctx, req.Email, code); err != nil {
		if perr := u.Policy.OnDeliveryFailure("email code", err); perr != nil {
			// nothing to keep around if the first code never went out
			if derr := u.PDB.DeleteOne(ctx, bson.M{"_id": pending.ID}); derr != nil {
				zap.S().With(derr).Error("failed to roll back pending registration")
			}
			config.ErrorStatus("failed to deliver verification code", http.StatusBadGateway, w, perr)
			return
		}
	}

	sess.PendingRegistrationID = pending.ID.Hex()
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pendingRegistrationId": pending.ID.Hex(),
		"emailCode":             code,
		"expiresAt":             codeExpiry,
	})
}

// pendingFromSession resolves the session's pending registration, enforcing
// lazy expiry. A nil return means a response was already written.
func (u Registration) pendingFromSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) *models.PendingRegistration {
	if sess == nil || sess.PendingRegistrationID == "" {
		config.ErrorStatus("no registration in progress", http.StatusBadRequest, w, nil)
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(sess.PendingRegistrationID)
	if err != nil {
		config.ErrorStatus("no registration in progress", http.StatusBadRequest, w, err)
		return nil
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	pending, err := u.PDB.FindOne(ctx, bson.M{"_id": oid})
	if err == mongo.ErrNoDocuments {
		sess.PendingRegistrationID = ""
		_ = u.Sessions.Save(ctx, sess)
		config.ErrorStatus("no registration in progress", http.StatusBadRequest, w, nil)
		return nil
	}
	if err != nil {
		config.ErrorStatus("failed to load pending registration", http.StatusInternalServerError, w, err)
		return nil
	}

	if pending.Expired(time.Now().UTC()) {
		if derr := u.PDB.DeleteOne(ctx, bson.M{"_id": oid}); derr != nil {
			zap.S().With(derr).Error("failed to delete expired pending registration")
		}
		sess.PendingRegistrationID = ""
		_ = u.Sessions.Save(ctx, sess)
		config.ErrorStatus("registration expired, please start again", http.StatusGone, w, nil)
		return nil
	}
	return pending
}

// VerifyEmailHandler checks the email code and, on success, advances the
// registration and sends the phone code.
func (u Registration) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}

	sess := api.SessionFrom(r.Context())
	pending := u.pendingFromSession(w, r, sess)
	if pending == nil {
		return
	}
	if pending.State != models.RegistrationInitiated {
		config.ErrorStatus("email already verified", http.StatusConflict, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	now := time.Now().UTC()

	if pending.EmailCodeExpired(now) {
		if derr := u.PDB.DeleteOne(ctx, bson.M{"_id": pending.ID}); derr != nil {
			zap.S().With(derr).Error("failed to delete expired pending registration")
		}
		sess.PendingRegistrationID = ""
		_ = u.Sessions.Save(ctx, sess)
		config.ErrorStatus("verification code expired, please start again", http.StatusGone, w, nil)
		return
	}
	if !otp.Verify(req.Code, pending.EmailCodeHash) {
		config.ErrorStatus("incorrect verification code", http.StatusBadRequest, w, nil)
		return
	}

	if err := pending.Advance(models.RegistrationEmailVerified); err != nil {
		config.ErrorStatus("email already verified", http.StatusConflict, w, err)
		return
	}

	code, codeHash, codeExpiry, err := otp.Issue()
	if err != nil {
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}
	pending.PhoneCodeHash = codeHash
	pending.PhoneCodeExpiresAt = &codeExpiry
	pending.LastCodeSentAt = now

	err = u.PDB.UpdateOne(ctx, bson.M{"_id": pending.ID}, bson.M{"$set": bson.M{
		"state":              pending.State,
		"emailCodeHash":      pending.EmailCodeHash,
		"emailCodeExpiresAt": pending.EmailCodeExpiresAt,
		"phoneCodeHash":      pending.PhoneCodeHash,
		"phoneCodeExpiresAt": pending.PhoneCodeExpiresAt,
		"lastCodeSentAt":     pending.LastCodeSentAt,
	}})
	if err != nil {
		config.ErrorStatus("failed to update pending registration", http.StatusInternalServerError, w, err)
		return
	}

	if err := u.Notifier.SendSMSCode(ctx, pending.Phone, code); err != nil {
		if perr := u.Policy.OnDeliveryFailure("phone code", err); perr != nil {
			// the email step itself stands; the caller can resend
			config.ErrorStatus("failed to deliver verification code", http.StatusBadGateway, w, perr)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":     pending.State,
		"phoneCode": code,
		"expiresAt": codeExpiry,
	})
}

// VerifyPhoneHandler checks the phone code and, on success, materializes the
// real account, deletes the pending registration and signs the caller in.
func (u Registration) VerifyPhoneHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}

	sess := api.SessionFrom(r.Context())
	pending := u.pendingFromSession(w, r, sess)
	if pending == nil {
		return
	}
	if pending.State != models.RegistrationEmailVerified {
		config.ErrorStatus("email must be verified first", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	now := time.Now().UTC()

	if pending.PhoneCodeExpired(now) {
		if derr := u.PDB.DeleteOne(ctx, bson.M{"_id": pending.ID}); derr != nil {
			zap.S().With(derr).Error("failed to delete expired pending registration")
		}
		sess.PendingRegistrationID = ""
		_ = u.Sessions.Save(ctx, sess)
		config.ErrorStatus("verification code expired, please start again", http.StatusGone, w, nil)
		return
	}
	if !otp.Verify(req.Code, pending.PhoneCodeHash) {
		config.ErrorStatus("incorrect verification code", http.StatusBadRequest, w, nil)
		return
	}

	// re-check uniqueness; an account could have appeared while the codes
	// were in flight
	taken, err := u.ADB.CountDocuments(ctx, bson.M{"email": pending.Email})
	if err != nil {
		config.ErrorStatus("failed to check for existing account", http.StatusInternalServerError, w, err)
		return
	}
	if taken > 0 {
		if derr := u.PDB.DeleteOne(ctx, bson.M{"_id": pending.ID}); derr != nil {
			zap.S().With(derr).Error("failed to delete superseded pending registration")
		}
		sess.PendingRegistrationID = ""
		_ = u.Sessions.Save(ctx, sess)
		config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, nil)
		return
	}

	verification := models.NewVerification()
	verification.Email.Status = models.StatusVerified
	verification.Email.VerifiedAt = &now
	verification.Phone.Status = models.StatusVerified
	verification.Phone.VerifiedAt = &now

	account := models.Account{
		ID:                  primitive.NewObjectID(),
		Email:               pending.Email,
		Name:                pending.Name,
		Role:                pending.Role,
		PasswordHash:        pending.PasswordHash,
		Phone:               pending.Phone,
		Postcode:            pending.Postcode,
		TradingName:         pending.TradingName,
		TownCity:            pending.TownCity,
		Address:             pending.Address,
		TravelDistanceMiles: pending.TravelDistanceMiles,
		ReferralCode:        pending.ReferralCode,
		Verification:        verification,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := u.ADB.InsertOne(ctx, account); err != nil {
		config.ErrorStatus("failed to create account", http.StatusInternalServerError, w, err)
		return
	}

	if err := u.PDB.DeleteOne(ctx, bson.M{"_id": pending.ID}); err != nil {
		zap.S().With(err).Error("failed to delete completed pending registration")
	}

	sess.PendingRegistrationID = ""
	sess.AccountID = account.ID.Hex()
	sess.Role = string(account.Role)
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}
	u.Sessions.SetCookie(w, sess)

	respondJSON(w, http.StatusCreated, account)
}

// ResendCodeHandler re-issues whichever code the current state needs. At most
// one delivery per minute per registration.
func (u Registration) ResendCodeHandler(w http.ResponseWriter, r *http.Request) {
	sess := api.SessionFrom(r.Context())
	pending := u.pendingFromSession(w, r, sess)
	if pending == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	now := time.Now().UTC()

	if now.Sub(pending.LastCodeSentAt) < ResendThrottle {
		config.ErrorStatus("please wait before requesting another code", http.StatusTooManyRequests, w, nil)
		return
	}

	code, codeHash, codeExpiry, err := otp.Issue()
	if err != nil {
		config.ErrorStatus("failed to issue verification code", http.StatusInternalServerError, w, err)
		return
	}

	var set bson.M
	var channel string
	switch pending.State {
	case models.RegistrationInitiated:
		channel = "email"
		set = bson.M{
			"emailCodeHash":      codeHash,
			"emailCodeExpiresAt": codeExpiry,
			"lastCodeSentAt":     now,
		}
	case models.RegistrationEmailVerified:
		channel = "phone"
		set = bson.M{
			"phoneCodeHash":      codeHash,
			"phoneCodeExpiresAt": codeExpiry,
			"lastCodeSentAt":     now,
		}
	default:
		config.ErrorStatus("no code to resend for this registration", http.StatusBadRequest, w, nil)
		return
	}

	if err := u.PDB.UpdateOne(ctx, bson.M{"_id": pending.ID}, bson.M{"$set": set}); err != nil {
		config.ErrorStatus("failed to update pending registration", http.StatusInternalServerError, w, err)
		return
	}

	if channel == "email" {
		err = u.Notifier.SendEmailCode(ctx, pending.Email, code)
	} else {
		err = u.Notifier.SendSMSCode(ctx, pending.Phone, code)
	}
	if err != nil {
		if perr := u.Policy.OnDeliveryFailure(channel+" code", err); perr != nil {
			config.ErrorStatus("failed to deliver verification code", http.StatusBadGateway, w, perr)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"channel":   channel,
		"code":      code,
		"expiresAt": codeExpiry,
	})
}

// LoginHandler authenticates with email and password. Admin accounts cannot
// sign in through the consumer app.
func (u Registration) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = normalizeEmail(req.Email)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	account, err := u.ADB.FindOne(ctx, bson.M{"email": req.Email})
	if err == mongo.ErrNoDocuments {
		config.ErrorStatus("incorrect email or password", http.StatusUnauthorized, w, nil)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to look up account", http.StatusInternalServerError, w, err)
		return
	}

	if account.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		config.ErrorStatus("incorrect email or password", http.StatusUnauthorized, w, nil)
		return
	}
	if account.Role == models.RoleAdmin {
		config.ErrorStatus("admin accounts cannot sign in here", http.StatusUnauthorized, w, nil)
		return
	}

	// one live session per account
	if err := u.Sessions.DeleteForAccount(ctx, account.ID.Hex()); err != nil {
		zap.S().With(err).Error("failed to invalidate previous session")
	}

	sess, err := u.Sessions.Create(ctx)
	if err != nil {
		config.ErrorStatus("failed to create session", http.StatusInternalServerError, w, err)
		return
	}
	sess.AccountID = account.ID.Hex()
	sess.Role = string(account.Role)
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}
	u.Sessions.SetCookie(w, sess)

	respondJSON(w, http.StatusOK, account)
}

// LogoutHandler drops the caller's session if one exists.
func (u Registration) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if sess, err := u.Sessions.FromRequest(r); err == nil {
		if derr := u.Sessions.Delete(ctx, sess); derr != nil {
			zap.S().With(derr).Error("failed to delete session")
		}
	}
	u.Sessions.ClearCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{"response": "signed out"})
}
