// Package payments wraps the hosted checkout provider. The booking service
// only sees the Provider interface; Stripe specifics stay here.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Session is a created checkout session the client gets redirected to.
type Session struct {
	ID  string
	URL string
}

// SessionInfo is the provider's view of a session during reconciliation.
type SessionInfo struct {
	ID       string
	Paid     bool
	Metadata map[string]string
}

type Provider interface {
	// CreateDepositSession opens a checkout session for the fixed deposit.
	// metadata carries the full booking draft for webhook-side reconstruction.
	CreateDepositSession(ctx context.Context, bookingID string, metadata map[string]string) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionInfo, error)
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	DepositCents  int64
	Currency      string
	ProductName   string
	SuccessURL    string
	CancelURL     string
}

type StripeProvider struct {
	cfg StripeConfig
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if cfg.DepositCents <= 0 {
		cfg.DepositCents = 2000
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Nail Deposit"
	}
	return &StripeProvider{cfg: cfg}, nil
}

func (p *StripeProvider) CreateDepositSession(ctx context.Context, bookingID string, metadata map[string]string) (Session, error) {
	// Stripe uses a global API key. Keep usage limited to these calls.
	stripe.Key = p.cfg.SecretKey

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.cfg.SuccessURL),
		CancelURL:          stripe.String(p.cfg.CancelURL),
		ClientReferenceID:  stripe.String(bookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.cfg.ProductName),
						Description: stripe.String("Non-refundable deposit to confirm your appointment."),
					},
					UnitAmount: stripe.Int64(p.cfg.DepositCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
	}
	params.Context = ctx
	// Stripe-level idempotency: replaying the same booking reuses the session.
	params.IdempotencyKey = stripe.String("deposit-" + bookingID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) RetrieveSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	stripe.Key = p.cfg.SecretKey

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return SessionInfo{
		ID:       sess.ID,
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: sess.Metadata,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the raw payload and
// returns the parsed event. Signature verification is the webhook's auth.
func (p *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, p.cfg.WebhookSecret)
}
