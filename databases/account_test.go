package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/tradelink-app/tradelink-api/config"
	"github.com/tradelink-app/tradelink-api/databases"
	"github.com/tradelink-app/tradelink-api/databases/mocks"
	"github.com/tradelink-app/tradelink-api/models"
)

func TestNewAccountDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	accountDB := databases.NewAccountDatabase(db)

	assert.NotEmpty(t, accountDB)
}

func TestAccountDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Account)
		arg.Email = "mocked@example.com"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "accounts").Return(collectionHelper)

	// Create new database with mocked Database interface
	accountDba := databases.NewAccountDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	account, err := accountDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, account)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct result
	account, err = accountDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, "mocked@example.com", account.Email)
	assert.NoError(t, err)
}

func TestAccountDatabase_UpdateOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"error": true}, mock.Anything).
		Return(nil, errors.New("mocked-error"))
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"error": false}, mock.Anything).
		Return(nil, nil)

	dbHelper.On("Collection", "accounts").Return(collectionHelper)

	accountDba := databases.NewAccountDatabase(dbHelper)

	err := accountDba.UpdateOne(context.Background(), bson.M{"error": true}, databases.Touch(bson.M{"name": "Jo"}))
	assert.EqualError(t, err, "mocked-error")

	err = accountDba.UpdateOne(context.Background(), bson.M{"error": false}, databases.Touch(bson.M{"name": "Jo"}))
	assert.NoError(t, err)
}

func TestTouch(t *testing.T) {
	update := databases.Touch(bson.M{"name": "Jo"})

	set, ok := update["$set"].(bson.M)
	assert.True(t, ok)
	assert.Equal(t, "Jo", set["name"])
	assert.NotEmpty(t, set["updatedAt"])
}
