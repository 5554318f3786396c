package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/metrics"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/opentelemetry"
	"github.com/AgiriTaofeek/natours-app/payment"
	"github.com/AgiriTaofeek/natours-app/query"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBytes = 64 << 10

var bookingSchema = query.Schema{
	"tour":      {Kind: query.ObjectID},
	"user":      {Kind: query.ObjectID},
	"price":     {Kind: query.Number, Multi: true},
	"paid":      {Kind: query.Bool},
	"createdAt": {Kind: query.Date},
}

type BookingHandler struct {
	*Resource[models.Booking]
	bookings *services.BookingService
	gateway  payment.Gateway
	log      *logrus.Logger
}

func NewBookingHandler(store database.Collection[models.Booking], bookings *services.BookingService, gateway payment.Gateway, log *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		Resource: NewResource("bookings", store, nil, bookingSchema, Hooks[models.Booking]{
			Prepare: bookings.Prepare,
			Expand:  bookings.Populate,
			PopulateOne: func(ctx context.Context, b *models.Booking) error {
				one := []models.Booking{*b}
				if err := bookings.Populate(ctx, one); err != nil {
					return err
				}
				*b = one[0]
				return nil
			},
			AfterWrite: func(_ context.Context, op Op, b *models.Booking, _ *models.Booking) error {
				if op == OpCreate {
					metrics.BookingCreated("admin")
					bookings.Announce(b)
				}
				return nil
			},
		}),
		bookings: bookings,
		gateway:  gateway,
		log:      log,
	}
}

func (h *BookingHandler) GetCheckoutSession(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "bookings-checkout-session")
	defer func() { span.End() }()

	tourID, err := objectIDParam(c, "tourID")
	if err != nil {
		httpError(err, span, c)
		return
	}
	session, err := h.bookings.CheckoutSession(ctx, tourID, middleware.CurrentUser(c), baseURL(c))
	if err != nil {
		httpError(err, span, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "session": session})
}

// WebhookCheckout receives payment events. The raw body is needed to
// verify the signature.
func (h *BookingHandler) WebhookCheckout(c *gin.Context) {
	ctx, span := opentelemetry.Tracer().Start(c.Request.Context(), "bookings-webhook")
	defer func() { span.End() }()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
		return
	}
	event, err := h.gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		span.RecordError(err)
		h.log.WithError(err).Warn("rejected webhook")
		c.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
		return
	}

	if event.Type == payment.EventCheckoutCompleted && event.Checkout != nil {
		booking, err := h.bookings.CreateFromCheckout(ctx, event.Checkout)
		if err != nil {
			httpError(err, span, c)
			return
		}
		h.log.WithFields(logrus.Fields{
			"booking": booking.ID.Hex(),
			"event":   event.ID,
		}).Info("booking created from checkout")
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
