package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
)

// ErrInvalidEventPayload marks webhook payloads that verified but did not
// parse; the handler maps it to a client error.
var ErrInvalidEventPayload = errors.New("invalid event payload")

// CheckoutLineItemLister fetches the line items of a completed checkout
// session. Completed-session events do not embed them.
type CheckoutLineItemLister interface {
	List(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

// SubscriptionFetcher loads a subscription to resolve its price id.
type SubscriptionFetcher interface {
	Get(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type stripeLineItemLister struct{}

func (stripeLineItemLister) List(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.Limit = stripe.Int64(10)
	iter := checkoutsession.ListLineItems(params)
	var items []*stripe.LineItem
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	return items, iter.Err()
}

type stripeSubscriptionFetcher struct{}

func (stripeSubscriptionFetcher) Get(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscriptionpkg.Get(subscriptionID, params)
}

// StripeService manages checkout sessions and applies webhook events to the
// entitlement store exactly once.
type StripeService struct {
	cfg         *config.Config
	events      repository.PaymentEventRepository
	lineItems   CheckoutLineItemLister
	subs        SubscriptionFetcher
	packCredits map[string]int
	tierCredits map[string]int
	logger      zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, events repository.PaymentEventRepository, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:         cfg,
		events:      events,
		lineItems:   stripeLineItemLister{},
		subs:        stripeSubscriptionFetcher{},
		packCredits: cfg.PackCredits(),
		tierCredits: cfg.TierCredits(),
		logger:      logger.With().Str("service", "StripeService").Logger(),
	}
}

// CreateCheckoutSession creates a Stripe Checkout session for a credit-pack
// purchase (mode payment) or a subscription activation.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, email, mode, priceID string, quantity int64) (url, sessionID string, err error) {
	if mode != string(stripe.CheckoutSessionModePayment) && mode != string(stripe.CheckoutSessionModeSubscription) {
		return "", "", fmt.Errorf("invalid checkout mode: %s", mode)
	}
	if mode == string(stripe.CheckoutSessionModePayment) {
		if quantity < 1 {
			quantity = 1
		}
		if quantity > 99 {
			quantity = 99
		}
	} else {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(quantity)},
		},
		SuccessURL: stripe.String(s.cfg.SiteOrigin + "/#/style-generator?billing=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.cfg.SiteOrigin + "/#/style-generator?billing=cancel"),
		Metadata:   map[string]string{"user_id": userID},
	}
	params.Context = ctx
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("price_id", priceID).Msg("Failed to create checkout session")
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

// ProcessEvent applies one verified webhook event. The idempotency record
// and the financial effect land in the same transaction, so a crash cannot
// mark an event processed without its credit. Returns duplicate=true when a
// redelivery was skipped.
func (s *StripeService) ProcessEvent(ctx context.Context, event stripe.Event) (duplicate bool, err error) {
	switch event.Type {
	case "checkout.session.completed":
		err = s.processCheckoutCompleted(ctx, event)
	case "invoice.paid":
		err = s.processInvoicePaid(ctx, event)
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Acknowledging unhandled event type")
		err = s.events.Record(ctx, event.ID, nil, nil)
	}
	if errors.Is(err, repository.ErrEventAlreadyProcessed) {
		s.logger.Info().Str("event_id", event.ID).Msg("Skipping duplicate webhook delivery")
		return true, nil
	}
	return false, err
}

func (s *StripeService) processCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("%w: checkout.session.completed: %v", ErrInvalidEventPayload, err)
	}

	userID := cs.Metadata["user_id"]
	if userID == "" {
		// Sessions created outside this service carry no user; record the
		// event so redeliveries stay no-ops.
		s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session has no user_id metadata, ignoring")
		return s.events.Record(ctx, event.ID, nil, nil)
	}

	var mapping *model.SubscriptionMapping
	if cs.Mode == stripe.CheckoutSessionModeSubscription && cs.Subscription != nil && cs.Subscription.ID != "" {
		mapping = &model.SubscriptionMapping{
			SubscriptionID: cs.Subscription.ID,
			UserID:         userID,
			Status:         "active",
		}
	}

	items, err := s.lineItems.List(ctx, cs.ID)
	if err != nil {
		return fmt.Errorf("list line items for session %s: %w", cs.ID, err)
	}
	credits := 0
	for _, li := range items {
		if li.Price == nil {
			continue
		}
		per := s.packCredits[li.Price.ID]
		qty := li.Quantity
		if qty < 1 {
			qty = 1
		}
		credits += per * int(qty)
	}

	var grant *model.CreditGrant
	if credits > 0 {
		grant = &model.CreditGrant{
			UserID:      userID,
			Credits:     credits,
			PeriodStart: model.MonthStartUTC(time.Now()),
		}
	}

	if err := s.events.Record(ctx, event.ID, mapping, grant); err != nil {
		return err
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("user_id", userID).
		Int("credits", credits).
		Bool("subscription", mapping != nil).
		Msg("Processed checkout.session.completed")
	return nil
}

func (s *StripeService) processInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("%w: invoice.paid: %v", ErrInvalidEventPayload, err)
	}

	var subscriptionID string
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Subscription != nil && line.Subscription.ID != "" {
				subscriptionID = line.Subscription.ID
				break
			}
		}
	}
	if subscriptionID == "" {
		// One-time invoice; pack purchases arrive via checkout.session.completed.
		s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, ignoring")
		return s.events.Record(ctx, event.ID, nil, nil)
	}

	userID, err := s.events.SubscriptionUser(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("resolve subscription %s: %w", subscriptionID, err)
	}
	if userID == "" {
		s.logger.Warn().Str("subscription_id", subscriptionID).Str("invoice_id", invoice.ID).Msg("No user mapping for subscription, ignoring invoice")
		return s.events.Record(ctx, event.ID, nil, nil)
	}

	sub, err := s.subs.Get(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	var priceID string
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	credits := s.tierCredits[priceID]

	var grant *model.CreditGrant
	if credits > 0 {
		billedAt := time.Now()
		if invoice.Created > 0 {
			billedAt = time.Unix(invoice.Created, 0)
		}
		grant = &model.CreditGrant{
			UserID:      userID,
			Credits:     credits,
			PeriodStart: model.MonthStartUTC(billedAt),
		}
	}

	if err := s.events.Record(ctx, event.ID, nil, grant); err != nil {
		return err
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("user_id", userID).
		Str("subscription_id", subscriptionID).
		Int("credits", credits).
		Msg("Processed invoice.paid")
	return nil
}
