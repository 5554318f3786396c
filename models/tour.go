package models

import (
	"encoding/json"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

const DefaultRatingsAverage = 4.5

// GeoPoint is a GeoJSON point with optional descriptive fields.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

func NewPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name            string               `bson:"name" json:"name,omitempty" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug,omitempty" json:"slug,omitempty"`
	Duration        int                  `bson:"duration,omitempty" json:"duration,omitempty" validate:"required,gt=0"`
	MaxGroupSize    int                  `bson:"maxGroupSize,omitempty" json:"maxGroupSize,omitempty" validate:"required,gt=0"`
	Difficulty      Difficulty           `bson:"difficulty,omitempty" json:"difficulty,omitempty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage,omitempty" validate:"gte=1,lte=5"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity,omitempty"`
	Price           float64              `bson:"price,omitempty" json:"price,omitempty" validate:"required,gt=0"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty" validate:"omitempty,gte=0,ltfield=Price"`
	Summary         string               `bson:"summary,omitempty" json:"summary,omitempty" validate:"required"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover,omitempty" json:"imageCover,omitempty" validate:"required"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"-"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool                 `bson:"secretTour" json:"secretTour,omitempty"`
	StartLocation   *GeoPoint            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []GeoPoint           `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`

	GuideDetails []UserSummary `bson:"-" json:"-"`
	Reviews      []Review      `bson:"-" json:"reviews,omitempty"`
}

func (t *Tour) GetID() primitive.ObjectID    { return t.ID }
func (t *Tour) SetID(id primitive.ObjectID) { t.ID = id }

func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// MarshalJSON adds durationWeeks and emits populated guides in place of
// their ids.
func (t Tour) MarshalJSON() ([]byte, error) {
	type alias Tour
	out := struct {
		alias
		Guides        any     `json:"guides,omitempty"`
		DurationWeeks float64 `json:"durationWeeks,omitempty"`
	}{alias: alias(t), DurationWeeks: t.DurationWeeks()}
	switch {
	case len(t.GuideDetails) > 0:
		out.Guides = t.GuideDetails
	case len(t.Guides) > 0:
		out.Guides = t.Guides
	}
	return json.Marshal(out)
}

// TourSummary is the projection embedded in bookings.
type TourSummary struct {
	ID         primitive.ObjectID `json:"_id"`
	Name       string             `json:"name"`
	Slug       string             `json:"slug,omitempty"`
	ImageCover string             `json:"imageCover,omitempty"`
}

func (t *Tour) Brief() TourSummary {
	return TourSummary{ID: t.ID, Name: t.Name, Slug: t.Slug, ImageCover: t.ImageCover}
}

// VisibleTours excludes secret tours.
func VisibleTours() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
