package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tradelink-app/tradelink-api/api/handlers"
	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/notifier"
	"github.com/tradelink-app/tradelink-api/sessions"
)

func newPassword(t *testing.T, m *mockDB, n *fakeNotifier, policy string) (handlers.Password, *sessions.Store) {
	t.Helper()
	store := newSessionStore(t)
	return handlers.Password{
		ADB:      databases.NewAccountDatabase(m.db),
		Sessions: store,
		Notifier: n,
		Policy:   notifier.PolicyFromName(policy),
		Conf:     &config.Config{PublicWebBaseURL: "https://www.tradelink.app"},
	}, store
}

func TestForgotPassword_UnknownEmailStillSucceeds(t *testing.T) {
	m := newMockDB(t, "accounts")
	onFindOneDecode(m.coll["accounts"], nil, errNoDocs)
	u, _ := newPassword(t, m, &fakeNotifier{}, "strict")

	req := httptest.NewRequest("POST", "/api/v1/auth/forgot-password",
		strings.NewReader(`{"email":"nobody@example.com"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ForgotPasswordHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["userNotFound"])
	m.coll["accounts"].AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPassword_HappyPath(t *testing.T) {
	m := newMockDB(t, "accounts")
	onFindOneDecode(m.coll["accounts"], &models.Account{
		ID:    primitive.NewObjectID(),
		Email: "jo@example.com",
		Role:  models.RoleClient,
	}, nil)
	m.coll["accounts"].On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	n := &fakeNotifier{}
	u, _ := newPassword(t, m, n, "strict")

	req := httptest.NewRequest("POST", "/api/v1/auth/forgot-password",
		strings.NewReader(`{"email":"jo@example.com"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ForgotPasswordHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["userNotFound"])

	// the emailed link carries the raw token against the web base URL
	require.Len(t, n.resetLinks, 1)
	assert.Contains(t, n.resetLinks[0], "jo@example.com:https://www.tradelink.app/reset-password?token=")
}

func TestForgotPassword_StrictPolicyRollsBackToken(t *testing.T) {
	m := newMockDB(t, "accounts")
	onFindOneDecode(m.coll["accounts"], &models.Account{
		ID:    primitive.NewObjectID(),
		Email: "jo@example.com",
	}, nil)
	m.coll["accounts"].On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	u, _ := newPassword(t, m, &fakeNotifier{err: errMocked}, "strict")

	req := httptest.NewRequest("POST", "/api/v1/auth/forgot-password",
		strings.NewReader(`{"email":"jo@example.com"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ForgotPasswordHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	// token set, then unset after the failed delivery
	m.coll["accounts"].AssertNumberOfCalls(t, "UpdateOne", 2)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	m := newMockDB(t, "accounts")
	onFindOneDecode(m.coll["accounts"], nil, errNoDocs)
	u, _ := newPassword(t, m, &fakeNotifier{}, "strict")

	req := httptest.NewRequest("POST", "/api/v1/auth/reset-password",
		strings.NewReader(`{"token":"deadbeef","password":"new-password-1"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ResetPasswordHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResetPassword_ShortPassword(t *testing.T) {
	m := newMockDB(t, "accounts")
	u, _ := newPassword(t, m, &fakeNotifier{}, "strict")

	req := httptest.NewRequest("POST", "/api/v1/auth/reset-password",
		strings.NewReader(`{"token":"deadbeef","password":"short"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ResetPasswordHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	m.coll["accounts"].AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestResetPassword_HappyPathInvalidatesSession(t *testing.T) {
	accountID := primitive.NewObjectID()
	m := newMockDB(t, "accounts")
	onFindOneDecode(m.coll["accounts"], &models.Account{
		ID:    accountID,
		Email: "jo@example.com",
	}, nil)
	m.coll["accounts"].On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	u, store := newPassword(t, m, &fakeNotifier{}, "strict")

	// the account holds a live session that must not survive the reset
	old, err := store.Create(context.Background())
	require.NoError(t, err)
	old.AccountID = accountID.Hex()
	require.NoError(t, store.Save(context.Background(), old))

	req := httptest.NewRequest("POST", "/api/v1/auth/reset-password",
		strings.NewReader(`{"token":"deadbeef","password":"new-password-1"}`))
	rr := httptest.NewRecorder()
	http.HandlerFunc(u.ResetPasswordHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	_, err = store.Get(context.Background(), old.Token)
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}
