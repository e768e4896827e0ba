package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SocialAuthError holds the structure for the socialAuthErrors collection in
// mongo. Append-only audit of OAuth handshake failures; the pipeline never
// reads it back. Resolved is flipped manually from the review console.
type SocialAuthError struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Provider  string             `json:"provider" bson:"provider"`
	Email     string             `json:"email,omitempty" bson:"email,omitempty"`
	Reason    string             `json:"reason" bson:"reason"`
	Resolved  bool               `json:"resolved" bson:"resolved"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
