package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/metrics"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/payment"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const BookingCreatedSubject = "bookings.created"

// EventPublisher is satisfied by *nats.Conn.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

type BookingCreatedEvent struct {
	BookingID string  `json:"bookingId"`
	TourID    string  `json:"tourId"`
	UserID    string  `json:"userId"`
	Price     float64 `json:"price"`
}

type BookingService struct {
	bookings  database.Collection[models.Booking]
	tours     database.Collection[models.Tour]
	users     database.Collection[models.User]
	gateway   payment.Gateway
	publisher EventPublisher
	currency  string
	log       *logrus.Logger
	now       func() time.Time
}

func NewBookingService(stores *database.Stores, gateway payment.Gateway, publisher EventPublisher, currency string, log *logrus.Logger) *BookingService {
	if currency == "" {
		currency = "usd"
	}
	return &BookingService{
		bookings:  stores.Bookings,
		tours:     stores.Tours,
		users:     stores.Users,
		gateway:   gateway,
		publisher: publisher,
		currency:  currency,
		log:       log,
		now:       time.Now,
	}
}

// CheckoutSession opens a hosted checkout for one seat on the tour.
// baseURL is the scheme and host the customer is redirected back to.
func (s *BookingService) CheckoutSession(ctx context.Context, tourID primitive.ObjectID, user *models.User, baseURL string) (*payment.Session, error) {
	tour, err := s.tours.FindOne(ctx, database.ByID(tourID, models.VisibleTours()))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.NotFound("No document found with that ID")
	}
	if err != nil {
		return nil, err
	}

	baseURL = strings.TrimRight(baseURL, "/")
	var images []string
	if tour.ImageCover != "" {
		images = append(images, fmt.Sprintf("%s/img/tours/%s", baseURL, tour.ImageCover))
	}
	return s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		SuccessURL:        baseURL + "/my-tours?alert=booking",
		CancelURL:         baseURL + "/tour/" + tour.Slug,
		CustomerEmail:     user.Email,
		ClientReferenceID: tour.ID.Hex(),
		Name:              tour.Name + " Tour",
		Description:       tour.Summary,
		Images:            images,
		UnitAmount:        int64(math.Round(tour.Price * 100)),
		Currency:          s.currency,
	})
}

// CreateFromCheckout records the booking paid for in a completed checkout
// and announces it.
func (s *BookingService) CreateFromCheckout(ctx context.Context, done *payment.CheckoutCompleted) (*models.Booking, error) {
	tourID, err := database.ParseObjectID("tour", done.ClientReferenceID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindOne(ctx, bson.M{"email": normalizeEmail(done.CustomerEmail)})
	if err != nil {
		return nil, fmt.Errorf("resolve customer %q: %w", done.CustomerEmail, err)
	}

	booking := &models.Booking{
		Tour:      tourID,
		User:      user.ID,
		Price:     float64(done.AmountTotal) / 100,
		CreatedAt: s.now(),
		Paid:      models.BoolPtr(true),
	}
	if err := s.bookings.Insert(ctx, booking); err != nil {
		return nil, err
	}
	metrics.BookingCreated("checkout")
	s.Announce(booking)
	return booking, nil
}

// Announce publishes a created booking. Publishing is best effort.
func (s *BookingService) Announce(b *models.Booking) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(BookingCreatedEvent{
		BookingID: b.ID.Hex(),
		TourID:    b.Tour.Hex(),
		UserID:    b.User.Hex(),
		Price:     b.Price,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(BookingCreatedSubject, data); err != nil {
		s.log.WithError(err).WithField("booking", b.ID.Hex()).Warn("failed to publish booking event")
	}
}

// Prepare fills defaults on bookings written through the admin API.
func (s *BookingService) Prepare(_ context.Context, b *models.Booking, existing *models.Booking) error {
	if existing == nil {
		b.CreatedAt = s.now()
	} else {
		b.CreatedAt = existing.CreatedAt
	}
	if b.Paid == nil {
		b.Paid = models.BoolPtr(true)
	}
	return nil
}

// Populate attaches user and tour summaries. Bookings of deleted tours
// keep their raw ids.
func (s *BookingService) Populate(ctx context.Context, bookings []models.Booking) error {
	userIDs := make([]primitive.ObjectID, 0, len(bookings))
	tourIDs := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		userIDs = append(userIDs, b.User)
		tourIDs = append(tourIDs, b.Tour)
	}

	users, err := userSummaries(ctx, s.users, userIDs)
	if err != nil {
		return err
	}
	tourIDs = uniqueIDs(tourIDs)
	tours := map[primitive.ObjectID]models.TourSummary{}
	if len(tourIDs) > 0 {
		found, err := s.tours.Find(ctx, database.Query{Filter: bson.M{"_id": bson.M{"$in": tourIDs}}})
		if err != nil {
			return err
		}
		for i := range found {
			tours[found[i].ID] = found[i].Brief()
		}
	}

	for i := range bookings {
		if u, ok := users[bookings[i].User]; ok {
			bookings[i].UserInfo = &u
		}
		if t, ok := tours[bookings[i].Tour]; ok {
			bookings[i].TourInfo = &t
		}
	}
	return nil
}

// BookedTourIDs lists the ids of tours the user has booked.
func (s *BookingService) BookedTourIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	bookings, err := s.bookings.Find(ctx, database.Query{Filter: bson.M{"user": userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.Tour)
	}
	return ids, nil
}
