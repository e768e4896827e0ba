package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tradelink-app/tradelink-api/api"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/databases/mocks"
	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/sessions"
)

// fakeNotifier records deliveries and optionally fails them.
type fakeNotifier struct {
	emailCodes []string
	smsCodes   []string
	resetLinks []string
	err        error
}

func (f *fakeNotifier) SendEmailCode(_ context.Context, email, code string) error {
	if f.err != nil {
		return f.err
	}
	f.emailCodes = append(f.emailCodes, email+":"+code)
	return nil
}

func (f *fakeNotifier) SendSMSCode(_ context.Context, phone, code string) error {
	if f.err != nil {
		return f.err
	}
	f.smsCodes = append(f.smsCodes, phone+":"+code)
	return nil
}

func (f *fakeNotifier) SendResetLink(_ context.Context, email, link string) error {
	if f.err != nil {
		return f.err
	}
	f.resetLinks = append(f.resetLinks, email+":"+link)
	return nil
}

// mockDB bundles one mocked mongo collection behind the database helper.
type mockDB struct {
	db   *mocks.DatabaseHelper
	coll map[string]*mocks.CollectionHelper
}

func newMockDB(t *testing.T, collections ...string) *mockDB {
	t.Helper()
	m := &mockDB{
		db:   &mocks.DatabaseHelper{},
		coll: map[string]*mocks.CollectionHelper{},
	}
	for _, name := range collections {
		conn := &mocks.CollectionHelper{}
		m.coll[name] = conn
		m.db.On("Collection", name).Return(conn)
	}
	return m
}

// onFindOneDecode wires a FindOne whose Decode fills dest into v, or returns
// err when dest is nil.
func onFindOneDecode(conn *mocks.CollectionHelper, dest interface{}, err error) {
	single := &mocks.SingleResultHelper{}
	if err != nil {
		single.On("Decode", mock.Anything).Return(err)
	} else {
		single.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
			switch v := args.Get(0).(type) {
			case *models.Account:
				*v = *dest.(*models.Account)
			case *models.PendingRegistration:
				*v = *dest.(*models.PendingRegistration)
			}
		}).Return(nil)
	}
	conn.On("FindOne", mock.Anything, mock.Anything).Return(single)
}

var errNoDocs = mongo.ErrNoDocuments

var errMocked = errors.New("mocked-error")

func newSessionStore(t *testing.T) *sessions.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return sessions.NewStore(rdb, false)
}

// authedRequest attaches a fresh authenticated session cookie to the request
// and returns the session for later inspection.
func authedRequest(t *testing.T, store *sessions.Store, req *http.Request, accountID string) *sessions.Session {
	t.Helper()
	sess, err := store.Create(context.Background())
	require.NoError(t, err)
	sess.AccountID = accountID
	sess.Role = string(models.RoleClient)
	require.NoError(t, store.Save(context.Background(), sess))
	req.AddCookie(&http.Cookie{Name: sessions.CookieName, Value: sess.Token})
	return sess
}

// serveWithSession runs the handler behind the session middleware so the
// request context carries the session, the way the router wires it.
func serveWithSession(store *sessions.Store, handler http.HandlerFunc, req *http.Request, requireAuth bool) *httptest.ResponseRecorder {
	sm := api.SessionMiddleware{Sessions: store}
	rr := httptest.NewRecorder()
	if requireAuth {
		sm.Require(handler).ServeHTTP(rr, req)
	} else {
		sm.Attach(handler).ServeHTTP(rr, req)
	}
	return rr
}

func insertOneOK(conn *mocks.CollectionHelper) {
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)
}

var _ databases.CollectionHelper = &mocks.CollectionHelper{}
