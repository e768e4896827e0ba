package otp_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradelink-app/tradelink-api/otp"
)

func TestIssueProducesFourDigitCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, hash, expiresAt, err := otp.Issue()
		assert.NoError(t, err)
		assert.Len(t, code, 4)

		n, err := strconv.Atoi(code)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)

		assert.NotEqual(t, code, hash)
		assert.WithinDuration(t, time.Now().Add(otp.CodeLifetime), expiresAt, 5*time.Second)
	}
}

func TestVerify(t *testing.T) {
	code, hash, _, err := otp.Issue()
	assert.NoError(t, err)

	assert.True(t, otp.Verify(code, hash))
	assert.False(t, otp.Verify("0000", hash))
	assert.False(t, otp.Verify("", hash))
	assert.False(t, otp.Verify(code, ""))
}

func TestNewResetToken(t *testing.T) {
	token, hash, err := otp.NewResetToken()
	assert.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, token, hash)

	// stored hash must be recomputable from the raw token
	assert.Equal(t, hash, otp.HashResetToken(token))

	token2, _, err := otp.NewResetToken()
	assert.NoError(t, err)
	assert.NotEqual(t, token, token2)
}
