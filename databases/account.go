package databases

// go generate: mockery --name AccountDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradelink-app/tradelink-api/models"
)

const accountName = "accounts"

// AccountDatabase contains the methods to use with the account database
type AccountDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Account, error)
	InsertOne(ctx context.Context, account models.Account) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type accountDatabase struct {
	db DatabaseHelper
}

// NewAccountDatabase initializes a new instance of account database with the provided db connection
func NewAccountDatabase(db DatabaseHelper) AccountDatabase {
	return &accountDatabase{
		db: db,
	}
}

func (a *accountDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Account, error) {
	account := &models.Account{}
	err := a.db.Collection(accountName).FindOne(ctx, filter).Decode(account)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (a *accountDatabase) InsertOne(ctx context.Context, account models.Account) (InsertOneResultHelper, error) {
	return a.db.Collection(accountName).InsertOne(ctx, account)
}

func (a *accountDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := a.db.Collection(accountName).UpdateOne(ctx, filter, update, opts...)
	return err
}

func (a *accountDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return a.db.Collection(accountName).CountDocuments(ctx, filter, opts...)
}

// EnsureIndexes creates the unique email index. The index is the last line of
// defense against duplicate accounts; handlers still perform an explicit
// existence check before every create.
func (a *accountDatabase) EnsureIndexes(ctx context.Context) error {
	return a.db.Collection(accountName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

// Touch is a convenience update stamping updatedAt alongside the given $set
// fields.
func Touch(set bson.M) bson.M {
	set["updatedAt"] = time.Now()
	return bson.M{"$set": set}
}
