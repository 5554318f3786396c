package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Review    string             `bson:"review" json:"review,omitempty" validate:"required"`
	Rating    float64            `bson:"rating" json:"rating,omitempty" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`

	Author *UserSummary `bson:"-" json:"-"`
}

func (r *Review) GetID() primitive.ObjectID    { return r.ID }
func (r *Review) SetID(id primitive.ObjectID) { r.ID = id }

func (r Review) MarshalJSON() ([]byte, error) {
	type alias Review
	out := struct {
		alias
		User any `json:"user"`
	}{alias: alias(r), User: r.User}
	if r.Author != nil {
		out.User = r.Author
	}
	return json.Marshal(out)
}
