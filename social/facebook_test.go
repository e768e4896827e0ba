package social_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelink-app/tradelink-api/social"
)

func TestVerifiersFor(t *testing.T) {
	verifiers := social.Verifiers{
		social.ProviderFacebook: &social.FacebookVerifier{},
	}

	v, err := verifiers.For("facebook")
	assert.NoError(t, err)
	assert.NotNil(t, v)

	_, err = verifiers.For("myspace")
	assert.Error(t, err)
}

func TestFacebookVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "valid-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "id,email,first_name,last_name", r.URL.Query().Get("fields"))
		w.Write([]byte(`{"id":"fb-123","email":"jo@example.com","first_name":"Jo","last_name":"Smith"}`))
	}))
	defer srv.Close()

	v := &social.FacebookVerifier{GraphURL: srv.URL}
	profile, err := v.Verify(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, "fb-123", profile.ProviderID)
	assert.Equal(t, "jo@example.com", profile.Email)
	assert.Equal(t, "Jo", profile.FirstName)
	assert.Equal(t, "Smith", profile.LastName)
}

func TestFacebookVerifyRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
	}))
	defer srv.Close()

	v := &social.FacebookVerifier{GraphURL: srv.URL}
	_, err := v.Verify(context.Background(), "bad-token")
	assert.ErrorContains(t, err, "Invalid OAuth access token")
}

func TestFacebookVerifyMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"jo@example.com"}`))
	}))
	defer srv.Close()

	v := &social.FacebookVerifier{GraphURL: srv.URL}
	_, err := v.Verify(context.Background(), "odd-token")
	assert.Error(t, err)
}
