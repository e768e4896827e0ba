package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/notifier"
	"github.com/tradelink-app/tradelink-api/otp"
	"github.com/tradelink-app/tradelink-api/sessions"
)

// Password implements the forgot/reset password pair. Only the sha256 of the
// reset token is stored; the raw token travels once, inside the emailed link.
type Password struct {
	ADB      databases.AccountDatabase
	Sessions *sessions.Store
	Notifier notifier.Notifier
	Policy   notifier.FailurePolicy
	Conf     *config.Config
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ForgotPasswordHandler issues a reset link. The response always succeeds but
// carries a userNotFound flag so the web client can show its guidance screen.
func (u Password) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		config.ErrorStatus("missing email", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	account, err := u.ADB.FindOne(ctx, bson.M{"email": req.Email})
	if err == mongo.ErrNoDocuments {
		respondJSON(w, http.StatusOK, map[string]interface{}{"userNotFound": true})
		return
	}
	if err != nil {
		config.ErrorStatus("failed to look up account", http.StatusInternalServerError, w, err)
		return
	}

	token, tokenHash, err := otp.NewResetToken()
	if err != nil {
		config.ErrorStatus("failed to issue reset token", http.StatusInternalServerError, w, err)
		return
	}
	expiry := time.Now().UTC().Add(otp.ResetTokenLifetime)

	err = u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID}, databases.Touch(bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": expiry,
	}))
	if err != nil {
		config.ErrorStatus("failed to store reset token", http.StatusInternalServerError, w, err)
		return
	}

	link := u.Conf.PublicWebBaseURL + "/reset-password?token=" + token
	if err := u.Notifier.SendResetLink(ctx, account.Email, link); err != nil {
		if perr := u.Policy.OnDeliveryFailure("reset link", err); perr != nil {
			// a token the user never received is only a liability
			uerr := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID}, bson.M{"$unset": bson.M{
				"resetPasswordToken":   "",
				"resetPasswordExpires": "",
			}})
			if uerr != nil {
				zap.S().With(uerr).Error("failed to roll back reset token")
			}
			config.ErrorStatus("failed to deliver reset link", http.StatusBadGateway, w, perr)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"userNotFound": false})
}

// ResetPasswordHandler consumes a reset token. The lookup hashes the supplied
// token and matches it together with the expiry in one query, so invalid and
// expired tokens are indistinguishable to the caller.
func (u Password) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Token == "" {
		config.ErrorStatus("invalid or expired reset token", http.StatusBadRequest, w, nil)
		return
	}
	if len(req.Password) < 8 {
		config.ErrorStatus("password must be at least 8 characters", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	account, err := u.ADB.FindOne(ctx, bson.M{
		"resetPasswordToken":   otp.HashResetToken(req.Token),
		"resetPasswordExpires": bson.M{"$gt": time.Now().UTC()},
	})
	if err == mongo.ErrNoDocuments {
		config.ErrorStatus("invalid or expired reset token", http.StatusBadRequest, w, nil)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to look up reset token", http.StatusInternalServerError, w, err)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	err = u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID}, bson.M{
		"$set": bson.M{
			"passwordHash": string(passwordHash),
			"updatedAt":    time.Now(),
		},
		"$unset": bson.M{
			"resetPasswordToken":   "",
			"resetPasswordExpires": "",
		},
	})
	if err != nil {
		config.ErrorStatus("failed to update password", http.StatusInternalServerError, w, err)
		return
	}

	// whoever held the old password loses their session
	if err := u.Sessions.DeleteForAccount(ctx, account.ID.Hex()); err != nil {
		zap.S().With(err).Error("failed to invalidate session after password reset")
	}

	respondJSON(w, http.StatusOK, map[string]string{"response": "password updated"})
}
