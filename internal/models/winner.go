package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Winner is the durable history record created alongside the embedded
// WinnerRecord. Mini draws clear their embedded winner when they cycle; this
// collection is what preserves past results.
type Winner struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	DrawID          primitive.ObjectID `bson:"drawId" json:"drawId"`
	DrawType        DrawType           `bson:"drawType" json:"drawType"`
	Cycle           int                `bson:"cycle" json:"cycle"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	EntryNumber     int                `bson:"entryNumber" json:"entryNumber"`
	TotalEntries    int                `bson:"totalEntries" json:"totalEntries"` // pool size at selection
	SelectionMethod string             `bson:"selectionMethod" json:"selectionMethod"`
	SelectedBy      string             `bson:"selectedBy" json:"selectedBy"`
	SelectedDate    time.Time          `bson:"selectedDate" json:"selectedDate"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
