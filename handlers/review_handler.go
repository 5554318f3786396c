package handlers

import (
	"context"
	"time"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/query"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

const tourIDKey = "tourId"

var reviewSchema = query.Schema{
	"rating":    {Kind: query.Number, Multi: true},
	"tour":      {Kind: query.ObjectID},
	"user":      {Kind: query.ObjectID},
	"createdAt": {Kind: query.Date},
}

type ReviewHandler struct {
	*Resource[models.Review]
	reviews *services.ReviewService
}

func NewReviewHandler(store database.Collection[models.Review], reviews *services.ReviewService) *ReviewHandler {
	h := &ReviewHandler{reviews: reviews}
	h.Resource = NewResource("reviews", store, nil, reviewSchema, Hooks[models.Review]{
		PreFilter:  h.tourFilter,
		Fill:       h.setTourUserIDs,
		Prepare:    prepareReview,
		AfterWrite: h.recalculate,
		Expand:     reviews.PopulateAuthors,
		PopulateOne: func(ctx context.Context, r *models.Review) error {
			one := []models.Review{*r}
			if err := reviews.PopulateAuthors(ctx, one); err != nil {
				return err
			}
			*r = one[0]
			return nil
		},
	})
	return h
}

// NestedTour exposes the :id of /tours/:id/reviews as the review's tour.
func NestedTour(c *gin.Context) {
	c.Set(tourIDKey, c.Param("id"))
	c.Next()
}

func (h *ReviewHandler) tourFilter(c *gin.Context) bson.M {
	raw := c.GetString(tourIDKey)
	if raw == "" {
		return nil
	}
	id, err := database.ParseObjectID("tour", raw)
	if err != nil {
		// matches nothing
		return bson.M{"tour": raw}
	}
	return bson.M{"tour": id}
}

func (h *ReviewHandler) setTourUserIDs(c *gin.Context, r *models.Review) error {
	if raw := c.GetString(tourIDKey); raw != "" && r.Tour.IsZero() {
		id, err := database.ParseObjectID("tour", raw)
		if err != nil {
			return err
		}
		r.Tour = id
	}
	if user := middleware.CurrentUser(c); user != nil && r.User.IsZero() {
		r.User = user.ID
	}
	return nil
}

func prepareReview(_ context.Context, r *models.Review, existing *models.Review) error {
	if existing == nil {
		r.CreatedAt = time.Now()
	} else {
		r.CreatedAt = existing.CreatedAt
	}
	return nil
}

func (h *ReviewHandler) recalculate(ctx context.Context, _ Op, r *models.Review, previous *models.Review) error {
	if err := h.reviews.RecalculateRatings(ctx, r.Tour); err != nil {
		return err
	}
	if previous != nil && previous.Tour != r.Tour {
		return h.reviews.RecalculateRatings(ctx, previous.Tour)
	}
	return nil
}
