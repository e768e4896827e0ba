package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradelink-app/tradelink-api/models"
)

func TestAdvance(t *testing.T) {
	t.Run("initiated to email verified consumes the email code", func(t *testing.T) {
		expiry := time.Now().Add(10 * time.Minute)
		p := models.PendingRegistration{
			State:              models.RegistrationInitiated,
			EmailCodeHash:      "some-hash",
			EmailCodeExpiresAt: &expiry,
		}
		assert.NoError(t, p.Advance(models.RegistrationEmailVerified))
		assert.Equal(t, models.RegistrationEmailVerified, p.State)
		assert.Empty(t, p.EmailCodeHash)
		assert.Nil(t, p.EmailCodeExpiresAt)
	})

	t.Run("replaying the email step fails", func(t *testing.T) {
		p := models.PendingRegistration{State: models.RegistrationEmailVerified}
		assert.Error(t, p.Advance(models.RegistrationEmailVerified))
	})

	t.Run("self transition from initiated fails", func(t *testing.T) {
		p := models.PendingRegistration{State: models.RegistrationInitiated}
		assert.Error(t, p.Advance(models.RegistrationInitiated))
	})
}

func TestExpiry(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	t.Run("document expiry", func(t *testing.T) {
		p := models.PendingRegistration{ExpiresAt: future}
		assert.False(t, p.Expired(now))
		p.ExpiresAt = past
		assert.True(t, p.Expired(now))
	})

	t.Run("code expiry follows its own clock", func(t *testing.T) {
		p := models.PendingRegistration{ExpiresAt: future, EmailCodeExpiresAt: &past}
		assert.True(t, p.EmailCodeExpired(now))
		p.EmailCodeExpiresAt = &future
		assert.False(t, p.EmailCodeExpired(now))
	})

	t.Run("document expiry dominates code expiry", func(t *testing.T) {
		p := models.PendingRegistration{ExpiresAt: past, EmailCodeExpiresAt: &future, PhoneCodeExpiresAt: &future}
		assert.True(t, p.EmailCodeExpired(now))
		assert.True(t, p.PhoneCodeExpired(now))
	})

	t.Run("missing code never expires on its own", func(t *testing.T) {
		p := models.PendingRegistration{ExpiresAt: future}
		assert.False(t, p.PhoneCodeExpired(now))
	})
}
