// Package payment wraps the card payment processor.
package payment

import "context"

const EventCheckoutCompleted = "checkout.session.completed"

// CheckoutRequest describes a single-item hosted checkout.
type CheckoutRequest struct {
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Name              string
	Description       string
	Images            []string
	UnitAmount        int64
	Currency          string
}

// Session is the hosted checkout the client is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutCompleted is the payload of a completed checkout event.
type CheckoutCompleted struct {
	SessionID         string
	ClientReferenceID string
	CustomerEmail     string
	AmountTotal       int64
}

// Event is a verified webhook event. Checkout is set for
// checkout.session.completed events only.
type Event struct {
	ID       string
	Type     string
	Checkout *CheckoutCompleted
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
