package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelink-app/tradelink-api/api"
)

var reviewerSecret = []byte("test-secret")

func signedToken(t *testing.T, secret []byte, scope string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scope": scope})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func serveReviewer(token string) *httptest.ResponseRecorder {
	m := api.ReviewerMiddleware{Secret: reviewerSecret}
	handler := m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("PUT", "/api/v1/admin/verification/1234/idCard", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestReviewerMiddleware_MissingToken(t *testing.T) {
	rr := serveReviewer("")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReviewerMiddleware_WrongSecret(t *testing.T) {
	rr := serveReviewer(signedToken(t, []byte("other-secret"), "reviewer"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReviewerMiddleware_WrongScope(t *testing.T) {
	rr := serveReviewer(signedToken(t, reviewerSecret, "client"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReviewerMiddleware_ReviewerScope(t *testing.T) {
	rr := serveReviewer(signedToken(t, reviewerSecret, "reviewer"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReviewerMiddleware_AdminScope(t *testing.T) {
	rr := serveReviewer(signedToken(t, reviewerSecret, "admin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}
