package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/databases/mocks"
)

func newTestScheduler(pendingColl, errorColl *mocks.CollectionHelper) *Scheduler {
	dbHelper := &mocks.DatabaseHelper{}
	dbHelper.On("Collection", "pendingRegistrations").Return(pendingColl)
	dbHelper.On("Collection", "socialAuthErrors").Return(errorColl)

	return NewScheduler(
		databases.NewPendingRegistrationDatabase(dbHelper),
		databases.NewSocialAuthErrorDatabase(dbHelper),
	)
}

func TestSweepExpiredRegistrations(t *testing.T) {
	pendingColl := &mocks.CollectionHelper{}
	pendingColl.
		On("DeleteMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
			clause, ok := filter["expiresAt"].(bson.M)
			if !ok {
				return false
			}
			cutoff, ok := clause["$lt"].(time.Time)
			return ok && time.Since(cutoff) < time.Minute
		})).
		Return(int64(2), nil)

	s := newTestScheduler(pendingColl, &mocks.CollectionHelper{})
	s.sweepExpiredRegistrations()

	pendingColl.AssertExpectations(t)
}

func TestSweepExpiredRegistrations_DatabaseError(t *testing.T) {
	pendingColl := &mocks.CollectionHelper{}
	pendingColl.
		On("DeleteMany", mock.Anything, mock.Anything).
		Return(int64(0), errors.New("mocked-error"))

	s := newTestScheduler(pendingColl, &mocks.CollectionHelper{})

	// sweep failures are logged, never fatal
	assert.NotPanics(t, s.sweepExpiredRegistrations)
}

func TestSweepResolvedAuthErrors(t *testing.T) {
	errorColl := &mocks.CollectionHelper{}
	errorColl.
		On("DeleteMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
			if resolved, ok := filter["resolved"].(bool); !ok || !resolved {
				return false
			}
			clause, ok := filter["createdAt"].(bson.M)
			if !ok {
				return false
			}
			cutoff, ok := clause["$lt"].(time.Time)
			return ok && time.Since(cutoff) > resolvedErrorRetention-time.Minute
		})).
		Return(int64(5), nil)

	s := newTestScheduler(&mocks.CollectionHelper{}, errorColl)
	s.sweepResolvedAuthErrors()

	errorColl.AssertExpectations(t)
}
