package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BenefitEventStatus tracks whether a paid event's entries reached a draw
type BenefitEventStatus string

const (
	BenefitEventRouted   BenefitEventStatus = "ROUTED"
	BenefitEventUnrouted BenefitEventStatus = "UNROUTED"
)

// BenefitEvent is the idempotency ledger for entry awards. A unique index on
// (paymentIntentId, eventType) guarantees a payment can credit entries at most
// once regardless of how many times the purchase webhook is delivered. Events
// that found no draw to receive them are kept as UNROUTED for manual
// reconciliation rather than discarded.
type BenefitEvent struct {
	ID              string             `bson:"_id" json:"id"`
	EventType       string             `bson:"eventType" json:"eventType"`
	PaymentIntentID string             `bson:"paymentIntentId" json:"paymentIntentId"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	DrawID          primitive.ObjectID `bson:"drawId,omitempty" json:"drawId,omitempty"`
	DrawType        DrawType           `bson:"drawType" json:"drawType"`
	Source          EntrySource        `bson:"source" json:"source"`
	Entries         int                `bson:"entries" json:"entries"`
	Status          BenefitEventStatus `bson:"status" json:"status"`
	FailureReason   string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
