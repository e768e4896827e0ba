package databases

// go generate: mockery --name SocialAuthErrorDatabase

import (
	"context"

	"github.com/tradelink-app/tradelink-api/models"
)

const socialAuthErrorName = "socialAuthErrors"

// SocialAuthErrorDatabase contains the methods to use with the socialAuthError database.
// The collection is a write-only audit log; nothing in the pipeline reads it.
type SocialAuthErrorDatabase interface {
	InsertOne(ctx context.Context, authErr models.SocialAuthError) (InsertOneResultHelper, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
}

type socialAuthErrorDatabase struct {
	db DatabaseHelper
}

// NewSocialAuthErrorDatabase initializes a new instance of socialAuthError database with the provided db connection
func NewSocialAuthErrorDatabase(db DatabaseHelper) SocialAuthErrorDatabase {
	return &socialAuthErrorDatabase{
		db: db,
	}
}

func (s *socialAuthErrorDatabase) InsertOne(ctx context.Context, authErr models.SocialAuthError) (InsertOneResultHelper, error) {
	return s.db.Collection(socialAuthErrorName).InsertOne(ctx, authErr)
}

func (s *socialAuthErrorDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return s.db.Collection(socialAuthErrorName).DeleteMany(ctx, filter)
}
