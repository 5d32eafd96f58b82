package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const NotificationWinnerSelected = "WINNER_SELECTED"

// Notification records an outbound event for the messaging collaborator.
// The draw engine only emits these; delivery happens elsewhere.
type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Type       string             `bson:"type" json:"type"`
	DrawID     primitive.ObjectID `bson:"drawId" json:"drawId"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Dispatched bool               `bson:"dispatched" json:"dispatched"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
