package handlers

import (
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
	"github.com/tradelink-app/tradelink-api/payments"
	"github.com/tradelink-app/tradelink-api/storage"
)

// maxDocumentSize bounds a single verification document upload.
const maxDocumentSize = 10 << 20 // 10 MB

// documentFolder is where all verification documents live in object storage.
const documentFolder = "verification-documents"

// Verification handles document submission and the reviewer decision
// endpoint. Email and phone are owned by the challenge flows; only the
// document-backed dimensions accept uploads here.
type Verification struct {
	ADB     databases.AccountDatabase
	Storage storage.DocumentStorage
	Cards   payments.CardVerifier
}

type paymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

type reviewDecisionRequest struct {
	Status models.VerificationStatus `json:"status"`
	Reason string                    `json:"reason"`
}

// uploadableDimension reports whether the dimension accepts documents.
func uploadableDimension(dimension string) bool {
	switch dimension {
	case "address", "idCard", "publicLiabilityInsurance":
		return true
	}
	return false
}

func (u Verification) loadAccount(w http.ResponseWriter, r *http.Request, accountID string) *models.Account {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		config.ErrorStatus("invalid account id", http.StatusBadRequest, w, err)
		return nil
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	account, err := u.ADB.FindOne(ctx, bson.M{"_id": oid})
	if err == mongo.ErrNoDocuments {
		config.ErrorStatus("account not found", http.StatusNotFound, w, nil)
		return nil
	}
	if err != nil {
		config.ErrorStatus("failed to load account", http.StatusInternalServerError, w, err)
		return nil
	}
	return account
}

// UploadDocumentHandler stores a verification document and moves the
// dimension to pending review. Resubmission replaces the stored document and
// restarts review.
func (u Verification) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	dimension := mux.Vars(r)["dimension"]
	if !uploadableDimension(dimension) {
		config.ErrorStatus("this dimension does not accept documents", http.StatusBadRequest, w, nil)
		return
	}

	sess := api.SessionFrom(r.Context())
	account := u.loadAccount(w, r, sess.AccountID)
	if account == nil {
		return
	}

	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		config.ErrorStatus("failed to parse upload", http.StatusBadRequest, w, err)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		config.ErrorStatus("missing document file", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// one slot per account and dimension; re-upload overwrites in place
	publicID := account.ID.Hex() + "-" + dimension
	url, err := u.Storage.Upload(ctx, file, documentFolder, publicID)
	if err != nil {
		config.ErrorStatus("failed to store document", http.StatusBadGateway, w, err)
		return
	}

	record := account.Verification.Record(dimension)
	record.MarkUploaded(url, header.Filename)

	err = u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID},
		databases.Touch(bson.M{"verification." + dimension: record}))
	if err != nil {
		config.ErrorStatus("failed to update verification record", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dimension": dimension,
		"record":    record,
	})
}

// DeleteDocumentHandler withdraws a submitted document and resets the
// dimension. The stored object is removed best effort.
func (u Verification) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	dimension := mux.Vars(r)["dimension"]
	if !uploadableDimension(dimension) {
		config.ErrorStatus("this dimension does not accept documents", http.StatusBadRequest, w, nil)
		return
	}

	sess := api.SessionFrom(r.Context())
	account := u.loadAccount(w, r, sess.AccountID)
	if account == nil {
		return
	}

	record := account.Verification.Record(dimension)
	if record.DocumentURL == "" {
		config.ErrorStatus("no document to remove", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record.Reset()
	err := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID},
		databases.Touch(bson.M{"verification." + dimension: record}))
	if err != nil {
		config.ErrorStatus("failed to update verification record", http.StatusInternalServerError, w, err)
		return
	}

	if derr := u.Storage.Destroy(ctx, documentFolder, account.ID.Hex()+"-"+dimension); derr != nil {
		zap.S().With(derr).Error("failed to remove stored document")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dimension": dimension,
		"record":    record,
	})
}

// MarkPaymentVerifiedHandler verifies the payment method dimension from a
// tokenized payment method. Only the masked card ever touches the database.
func (u Verification) MarkPaymentVerifiedHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}
	if req.PaymentMethodID == "" {
		config.ErrorStatus("missing payment method id", http.StatusBadRequest, w, nil)
		return
	}

	sess := api.SessionFrom(r.Context())
	account := u.loadAccount(w, r, sess.AccountID)
	if account == nil {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	masked, err := u.Cards.MaskedCard(ctx, req.PaymentMethodID)
	if err != nil {
		config.ErrorStatus("failed to verify payment method", http.StatusBadGateway, w, err)
		return
	}

	now := time.Now().UTC()
	record := models.VerificationRecord{
		Status:     models.StatusVerified,
		VerifiedAt: &now,
		MaskedCard: masked,
	}
	err = u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID},
		databases.Touch(bson.M{"verification.paymentMethod": record}))
	if err != nil {
		config.ErrorStatus("failed to update verification record", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dimension": "paymentMethod",
		"record":    record,
	})
}

// ReviewDecisionHandler applies a reviewer verdict to a pending dimension.
// Only pending records move; replays and contradicting verdicts are rejected.
func (u Verification) ReviewDecisionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dimension := vars["dimension"]
	if !uploadableDimension(dimension) {
		config.ErrorStatus("this dimension is not reviewable", http.StatusBadRequest, w, nil)
		return
	}

	var req reviewDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to parse request body", http.StatusBadRequest, w, err)
		return
	}

	account := u.loadAccount(w, r, vars["account_id"])
	if account == nil {
		return
	}

	record := account.Verification.Record(dimension)
	if err := record.ApplyDecision(req.Status, req.Reason, time.Now().UTC()); err != nil {
		config.ErrorStatus("review decision not allowed", http.StatusConflict, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	err := u.ADB.UpdateOne(ctx, bson.M{"_id": account.ID},
		databases.Touch(bson.M{"verification." + dimension: record}))
	if err != nil {
		config.ErrorStatus("failed to update verification record", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accountId": account.ID.Hex(),
		"dimension": dimension,
		"record":    record,
	})
}
