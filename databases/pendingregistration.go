package databases

// go generate: mockery --name PendingRegistrationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradelink-app/tradelink-api/models"
)

const pendingRegistrationName = "pendingRegistrations"

// PendingRegistrationDatabase contains the methods to use with the pendingRegistration database
type PendingRegistrationDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.PendingRegistration, error)
	InsertOne(ctx context.Context, pending models.PendingRegistration) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	DeleteOne(ctx context.Context, filter interface{}) error
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type pendingRegistrationDatabase struct {
	db DatabaseHelper
}

// NewPendingRegistrationDatabase initializes a new instance of pendingRegistration database with the provided db connection
func NewPendingRegistrationDatabase(db DatabaseHelper) PendingRegistrationDatabase {
	return &pendingRegistrationDatabase{
		db: db,
	}
}

func (p *pendingRegistrationDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PendingRegistration, error) {
	pending := &models.PendingRegistration{}
	err := p.db.Collection(pendingRegistrationName).FindOne(ctx, filter).Decode(pending)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (p *pendingRegistrationDatabase) InsertOne(ctx context.Context, pending models.PendingRegistration) (InsertOneResultHelper, error) {
	return p.db.Collection(pendingRegistrationName).InsertOne(ctx, pending)
}

func (p *pendingRegistrationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := p.db.Collection(pendingRegistrationName).UpdateOne(ctx, filter, update, opts...)
	return err
}

// DeleteOne removes a pending registration. Deleting a document that is
// already gone is not an error; deletes in this flow are idempotent.
func (p *pendingRegistrationDatabase) DeleteOne(ctx context.Context, filter interface{}) error {
	_, err := p.db.Collection(pendingRegistrationName).DeleteOne(ctx, filter)
	return err
}

func (p *pendingRegistrationDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return p.db.Collection(pendingRegistrationName).DeleteMany(ctx, filter)
}

// EnsureIndexes creates the unique email index plus the TTL index on
// expiresAt. The TTL sweep is a backstop only; in-request expiry checks stay
// authoritative because mongo's sweeps are not instantaneous.
func (p *pendingRegistrationDatabase) EnsureIndexes(ctx context.Context) error {
	return p.db.Collection(pendingRegistrationName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
}
