package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/logging"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeGateway struct {
	last payment.CheckoutRequest
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.last = req
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payment.Event, error) {
	return nil, nil
}

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func TestCheckoutSessionRequest(t *testing.T) {
	stores := database.NewMemoryStores()
	gw := &fakeGateway{}
	svc := NewBookingService(stores, gw, nil, "", logging.Discard())
	tour := insertTour(t, stores.Tours, models.Tour{
		Name: "The Forest Hiker", Slug: "the-forest-hiker", Summary: "Breathtaking hike",
		Price: 397, ImageCover: "tour-1-cover.jpg",
	})
	user := &models.User{Email: "buyer@example.com"}

	sess, err := svc.CheckoutSession(context.Background(), tour.ID, user, "https://natours.dev/")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)

	req := gw.last
	assert.Equal(t, "https://natours.dev/my-tours?alert=booking", req.SuccessURL)
	assert.Equal(t, "https://natours.dev/tour/the-forest-hiker", req.CancelURL)
	assert.Equal(t, "buyer@example.com", req.CustomerEmail)
	assert.Equal(t, tour.ID.Hex(), req.ClientReferenceID)
	assert.Equal(t, "The Forest Hiker Tour", req.Name)
	assert.Equal(t, int64(39700), req.UnitAmount)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, []string{"https://natours.dev/img/tours/tour-1-cover.jpg"}, req.Images)
}

func TestCheckoutSessionRoundsToCents(t *testing.T) {
	stores := database.NewMemoryStores()
	gw := &fakeGateway{}
	svc := NewBookingService(stores, gw, nil, "usd", logging.Discard())
	user := &models.User{Email: "buyer@example.com"}

	for i, tc := range []struct {
		price float64
		cents int64
	}{
		{19.99, 1999},
		{0.29, 29},
		{1497.55, 149755},
	} {
		tour := insertTour(t, stores.Tours, models.Tour{Name: fmt.Sprintf("The Park Camper %d", i), Price: tc.price})
		_, err := svc.CheckoutSession(context.Background(), tour.ID, user, "http://x")
		require.NoError(t, err)
		assert.Equal(t, tc.cents, gw.last.UnitAmount, "price %v", tc.price)
	}
}

func TestCheckoutSessionUnknownTour(t *testing.T) {
	stores := database.NewMemoryStores()
	svc := NewBookingService(stores, &fakeGateway{}, nil, "usd", logging.Discard())
	user := insertUser(t, stores.Users, "U", "u@example.com", models.RoleUser)
	_, err := svc.CheckoutSession(context.Background(), user.ID, user, "http://x")
	assert.Equal(t, 404, statusOf(t, err))
}

func TestCreateFromCheckoutStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	stores := database.NewMemoryStores()
	pub := &fakePublisher{}
	svc := NewBookingService(stores, &fakeGateway{}, pub, "usd", logging.Discard())
	tour := insertTour(t, stores.Tours, models.Tour{Name: "The Sea Explorer", Slug: "the-sea-explorer", Price: 497})
	user := insertUser(t, stores.Users, "Buyer", "buyer@example.com", models.RoleUser)

	booking, err := svc.CreateFromCheckout(ctx, &payment.CheckoutCompleted{
		SessionID:         "cs_1",
		ClientReferenceID: tour.ID.Hex(),
		CustomerEmail:     "Buyer@example.com",
		AmountTotal:       49700,
	})
	require.NoError(t, err)
	assert.Equal(t, 497.0, booking.Price)
	assert.Equal(t, user.ID, booking.User)
	require.NotNil(t, booking.Paid)
	assert.True(t, *booking.Paid)

	n, err := stores.Bookings.Count(ctx, bson.M{"user": user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, BookingCreatedSubject, pub.msgs[0].subject)
	var evt BookingCreatedEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &evt))
	assert.Equal(t, booking.ID.Hex(), evt.BookingID)
	assert.Equal(t, tour.ID.Hex(), evt.TourID)

	ids, err := svc.BookedTourIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, tour.ID, ids[0])

	bookings := []models.Booking{*booking}
	require.NoError(t, svc.Populate(ctx, bookings))
	require.NotNil(t, bookings[0].TourInfo)
	assert.Equal(t, "The Sea Explorer", bookings[0].TourInfo.Name)
	require.NotNil(t, bookings[0].UserInfo)
	assert.Equal(t, "Buyer", bookings[0].UserInfo.Name)
}

func TestCreateFromCheckoutUnknownCustomer(t *testing.T) {
	stores := database.NewMemoryStores()
	svc := NewBookingService(stores, &fakeGateway{}, nil, "usd", logging.Discard())
	tour := insertTour(t, stores.Tours, models.Tour{Name: "The Sea Explorer", Price: 497})

	_, err := svc.CreateFromCheckout(context.Background(), &payment.CheckoutCompleted{
		ClientReferenceID: tour.ID.Hex(),
		CustomerEmail:     "ghost@example.com",
		AmountTotal:       100,
	})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
