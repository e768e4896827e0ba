package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradelink-app/tradelink-api/models"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, models.RoleClient.Valid())
	assert.True(t, models.RoleProfessional.Valid())
	assert.False(t, models.RoleAdmin.Valid())
	assert.False(t, models.Role("owner").Valid())
}

func TestApplyDecision(t *testing.T) {
	now := time.Now().UTC()

	t.Run("approve pending", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusPending, RejectionReason: "old reason"}
		err := r.ApplyDecision(models.StatusVerified, "", now)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusVerified, r.Status)
		assert.Equal(t, now, *r.VerifiedAt)
		assert.Empty(t, r.RejectionReason)
	})

	t.Run("deny pending keeps reason", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusPending}
		err := r.ApplyDecision(models.StatusDenied, "document unreadable", now)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusDenied, r.Status)
		assert.Equal(t, "document unreadable", r.RejectionReason)
		assert.Nil(t, r.VerifiedAt)
	})

	t.Run("request modification", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusPending}
		err := r.ApplyDecision(models.StatusRequiredModification, "address cut off", now)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusRequiredModification, r.Status)
	})

	t.Run("decision replay is rejected", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusPending}
		assert.NoError(t, r.ApplyDecision(models.StatusVerified, "", now))
		assert.Error(t, r.ApplyDecision(models.StatusDenied, "changed my mind", now))
		assert.Equal(t, models.StatusVerified, r.Status)
	})

	t.Run("decision on not-started is rejected", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusNotStarted}
		assert.Error(t, r.ApplyDecision(models.StatusVerified, "", now))
	})

	t.Run("invalid target status", func(t *testing.T) {
		r := models.VerificationRecord{Status: models.StatusPending}
		assert.Error(t, r.ApplyDecision(models.StatusPending, "", now))
		assert.Error(t, r.ApplyDecision(models.StatusNotStarted, "", now))
	})
}

func TestMarkUploadedRestartsReview(t *testing.T) {
	now := time.Now().UTC()
	r := models.VerificationRecord{Status: models.StatusPending}
	assert.NoError(t, r.ApplyDecision(models.StatusDenied, "blurry photo", now))

	r.MarkUploaded("https://cdn.example/doc.pdf", "doc.pdf")
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, "https://cdn.example/doc.pdf", r.DocumentURL)
	assert.Equal(t, "doc.pdf", r.DocumentName)
	assert.Empty(t, r.RejectionReason)
	assert.Nil(t, r.VerifiedAt)
}

func TestRecordAccessor(t *testing.T) {
	v := models.NewVerification()

	for _, dimension := range []string{"email", "phone", "address", "idCard", "paymentMethod", "publicLiabilityInsurance"} {
		r := v.Record(dimension)
		assert.NotNil(t, r, dimension)
		assert.Equal(t, models.StatusNotStarted, r.Status)
	}
	assert.Nil(t, v.Record("passport"))

	// returned pointer aliases the struct field
	v.Record("idCard").Status = models.StatusPending
	assert.Equal(t, models.StatusPending, v.IDCard.Status)
}

func TestLinkedProviderID(t *testing.T) {
	a := models.Account{GoogleID: "g-123", FacebookID: "fb-456"}
	assert.Equal(t, "g-123", a.LinkedProviderID("google"))
	assert.Equal(t, "fb-456", a.LinkedProviderID("facebook"))
	assert.Empty(t, a.LinkedProviderID("twitter"))
}
