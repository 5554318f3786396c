package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`
	Price     float64            `bson:"price" json:"price" validate:"required,gt=0"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Paid      *bool              `bson:"paid" json:"paid"`

	TourInfo *TourSummary `bson:"-" json:"-"`
	UserInfo *UserSummary `bson:"-" json:"-"`
}

func (b *Booking) GetID() primitive.ObjectID    { return b.ID }
func (b *Booking) SetID(id primitive.ObjectID) { b.ID = id }

func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	out := struct {
		alias
		Tour any `json:"tour"`
		User any `json:"user"`
	}{alias: alias(b), Tour: b.Tour, User: b.User}
	if b.TourInfo != nil {
		out.Tour = b.TourInfo
	}
	if b.UserInfo != nil {
		out.User = b.UserInfo
	}
	return json.Marshal(out)
}
