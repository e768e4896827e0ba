package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/sessions"
	"github.com/tradelink-app/tradelink-api/social"
)

// Social links Google and Facebook identities to accounts. A callback either
// signs an existing account in (backfilling the provider id on first use) or
// parks a short-lived onboarding ticket on the session for complete-profile.
type Social struct {
	ADB       databases.AccountDatabase
	EDB       databases.SocialAuthErrorDatabase
	Sessions  *sessions.Store
	Verifiers social.Verifiers
	Conf      *config.Config
}

type socialCallbackRequest struct {
	Token string `json:"token"`
}

type completeProfileRequest struct {
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

// logAuthError records a failed social attempt for the support queue. Failure
// to record never fails the request.
func (u Social) logAuthError(ctx context.Context, provider, email, reason string) {
	_, err := u.EDB.InsertOne(ctx, models.SocialAuthError{
		ID:        primitive.NewObjectID(),
		Provider:  provider,
		Email:     email,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		zap.S().With(err).Error("failed to record social auth error")
	}
}

// CallbackHandler validates the provider token and either signs the matching
// account in or hands back an onboarding ticket.
func (u Social) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	verifier, err := u.Verifiers.For(provider)
	if err != nil {
		config.ErrorStatus("unsupported social provider", http.StatusBadRequest, w, err)
		return
	}

	var req socialCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Token == "" {
		config.ErrorStatus("missing provider token", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := verifier.Verify(ctx, req.Token)
	if err != nil {
		config.ErrorStatus("failed to validate provider token", http.StatusUnauthorized, w, err)
		return
	}
	email := normalizeEmail(profile.Email)
	if email == "" {
		u.logAuthError(ctx, provider, "", "provider returned no email")
		config.ErrorStatus("social profile has no email address", http.StatusBadRequest, w, nil)
		return
	}

	providerField := "googleId"
	if provider == social.ProviderFacebook {
		providerField = "facebookId"
	}

	// match on provider id first, then fall back to the email
	account, err := u.ADB.FindOne(ctx, bson.M{providerField: profile.ProviderID})
	if err == mongo.ErrNoDocuments {
		account, err = u.ADB.FindOne(ctx, bson.M{"email": email})
	}

	if err == nil {
		if account.Role == models.RoleAdmin {
			u.logAuthError(ctx, provider, email, "admin account attempted social sign-in")
			config.ErrorStatus("admin accounts cannot sign in here", http.StatusUnauthorized, w, nil)
			return
		}

		// first social sign-in on a password account links the identity
		if account.LinkedProviderID(provider) == "" {
			uerr := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID},
				databases.Touch(bson.M{providerField: profile.ProviderID}))
			if uerr != nil {
				config.ErrorStatus("failed to link social identity", http.StatusInternalServerError, w, uerr)
				return
			}
		}

		if derr := u.Sessions.DeleteForAccount(ctx, account.ID.Hex()); derr != nil {
			zap.S().With(derr).Error("failed to invalidate previous session")
		}
		sess, serr := u.Sessions.Create(ctx)
		if serr != nil {
			config.ErrorStatus("failed to create session", http.StatusInternalServerError, w, serr)
			return
		}
		sess.AccountID = account.ID.Hex()
		sess.Role = string(account.Role)
		if serr := u.Sessions.Save(ctx, sess); serr != nil {
			config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, serr)
			return
		}
		u.Sessions.SetCookie(w, sess)

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "signed-in",
			"account": account,
		})
		return
	}
	if err != mongo.ErrNoDocuments {
		config.ErrorStatus("failed to look up account", http.StatusInternalServerError, w, err)
		return
	}

	// no account yet: park an onboarding ticket on the session
	sess, err := u.Sessions.GetOrCreate(w, r)
	if err != nil {
		config.ErrorStatus("failed to open session", http.StatusInternalServerError, w, err)
		return
	}
	sess.Social = &sessions.SocialTicket{
		Provider:   provider,
		ProviderID: profile.ProviderID,
		Email:      email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
	}
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "needs-profile",
		"email":       email,
		"firstName":   profile.FirstName,
		"lastName":    profile.LastName,
		"redirectUrl": u.Conf.PublicWebBaseURL + u.Conf.SocialOnboardURL,
	})
}

// CompleteProfileHandler finishes a social signup from the session's
// onboarding ticket. Both challenge steps are skipped: the provider already
// vouched for the email.
func (u Social) CompleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess := api.SessionFrom(r.Context())
	if sess == nil || sess.Social == nil {
		config.ErrorStatus("no social signup in progress", http.StatusBadRequest, w, nil)
		return
	}
	ticket := sess.Social

	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if !req.AcceptedTerms {
		config.ErrorStatus("terms and conditions must be accepted", http.StatusBadRequest, w, nil)
		return
	}
	if !req.Role.Valid() {
		config.ErrorStatus("invalid role", http.StatusBadRequest, w, nil)
		return
	}
	if req.Phone == "" {
		config.ErrorStatus("missing required profile fields", http.StatusBadRequest, w, nil)
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

	providerField := "googleId"
	if ticket.Provider == social.ProviderFacebook {
		providerField = "facebookId"
	}

	// the ticket could be stale; re-check both identity keys
	if _, err := u.ADB.FindOne(ctx, bson.M{"$or": []bson.M{
		{"email": ticket.Email},
		{providerField: ticket.ProviderID},
	}}); err == nil {
		config.ErrorStatus("an account with this identity already exists", http.StatusConflict, w, nil)
		return
	} else if err != mongo.ErrNoDocuments {
		config.ErrorStatus("failed to check for existing account", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	verification := models.NewVerification()
	verification.Email.Status = models.StatusVerified
	verification.Email.VerifiedAt = &now

	account := models.Account{
		ID:                  primitive.NewObjectID(),
		Email:               ticket.Email,
		Name:                joinName(ticket.FirstName, ticket.LastName),
		Role:                req.Role,
		Phone:               req.Phone,
		Postcode:            req.Postcode,
		TradingName:         req.TradingName,
		TownCity:            req.TownCity,
		Address:             req.Address,
		TravelDistanceMiles: req.TravelDistanceMiles,
		ReferralCode:        req.ReferralCode,
		Verification:        verification,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if ticket.Provider == social.ProviderFacebook {
		account.FacebookID = ticket.ProviderID
	} else {
		account.GoogleID = ticket.ProviderID
	}

	if _, err := u.ADB.InsertOne(ctx, account); err != nil {
		config.ErrorStatus("failed to create account", http.StatusInternalServerError, w, err)
		return
	}

	sess.Social = nil
	sess.AccountID = account.ID.Hex()
	sess.Role = string(account.Role)
	if err := u.Sessions.Save(ctx, sess); err != nil {
		config.ErrorStatus("failed to save session", http.StatusInternalServerError, w, err)
		return
	}
	u.Sessions.SetCookie(w, sess)

	respondJSON(w, http.StatusCreated, account)
}

func joinName(first, last string) string {
	if first == "" {
		return last
	}
	if last == "" {
		return first
	}
	return first + " " + last
}
