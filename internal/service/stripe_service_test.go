package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

type recordedEvent struct {
	eventID string
	mapping *model.SubscriptionMapping
	grant   *model.CreditGrant
}

// fakePaymentEventRepo mirrors the real repository's duplicate handling: a
// second Record for the same event id fails without applying anything.
type fakePaymentEventRepo struct {
	records  []recordedEvent
	seen     map[string]bool
	subUsers map[string]string
}

func newFakePaymentEventRepo() *fakePaymentEventRepo {
	return &fakePaymentEventRepo{seen: map[string]bool{}, subUsers: map[string]string{}}
}

func (f *fakePaymentEventRepo) Record(ctx context.Context, eventID string, mapping *model.SubscriptionMapping, grant *model.CreditGrant) error {
	if f.seen[eventID] {
		return repository.ErrEventAlreadyProcessed
	}
	f.seen[eventID] = true
	f.records = append(f.records, recordedEvent{eventID: eventID, mapping: mapping, grant: grant})
	if mapping != nil {
		f.subUsers[mapping.SubscriptionID] = mapping.UserID
	}
	return nil
}

func (f *fakePaymentEventRepo) SubscriptionUser(ctx context.Context, subscriptionID string) (string, error) {
	return f.subUsers[subscriptionID], nil
}

type fakeLineItemLister struct {
	items []*stripe.LineItem
	err   error
}

func (f fakeLineItemLister) List(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	return f.items, f.err
}

type fakeSubscriptionFetcher struct {
	sub *stripe.Subscription
	err error
}

func (f fakeSubscriptionFetcher) Get(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return f.sub, f.err
}

func newTestStripeService(events repository.PaymentEventRepository, lister CheckoutLineItemLister, subs SubscriptionFetcher) *StripeService {
	return &StripeService{
		events:      events,
		lineItems:   lister,
		subs:        subs,
		packCredits: map[string]int{"price_pack_25": 25, "price_pack_60": 60},
		tierCredits: map[string]int{"price_tier_glam": 40},
		logger:      zerolog.Nop(),
	}
}

func checkoutCompletedEvent(t *testing.T, id string, session map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return stripe.Event{ID: id, Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}}
}

func invoicePaidEvent(t *testing.T, id string, invoice map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(invoice)
	require.NoError(t, err)
	return stripe.Event{ID: id, Type: "invoice.paid", Data: &stripe.EventData{Raw: raw}}
}

func TestProcessCheckoutCompletedGrantsPackCredits(t *testing.T) {
	events := newFakePaymentEventRepo()
	lister := fakeLineItemLister{items: []*stripe.LineItem{
		{Price: &stripe.Price{ID: "price_pack_25"}, Quantity: 2},
	}}
	svc := newTestStripeService(events, lister, fakeSubscriptionFetcher{})

	ev := checkoutCompletedEvent(t, "evt_1", map[string]any{
		"id":       "cs_1",
		"mode":     "payment",
		"metadata": map[string]string{"user_id": "u1"},
	})
	duplicate, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, duplicate)

	require.Len(t, events.records, 1)
	rec := events.records[0]
	assert.Equal(t, "evt_1", rec.eventID)
	assert.Nil(t, rec.mapping)
	require.NotNil(t, rec.grant)
	assert.Equal(t, "u1", rec.grant.UserID)
	assert.Equal(t, 50, rec.grant.Credits)
}

func TestProcessCheckoutCompletedSubscriptionRecordsMapping(t *testing.T) {
	events := newFakePaymentEventRepo()
	svc := newTestStripeService(events, fakeLineItemLister{}, fakeSubscriptionFetcher{})

	ev := checkoutCompletedEvent(t, "evt_2", map[string]any{
		"id":           "cs_2",
		"mode":         "subscription",
		"metadata":     map[string]string{"user_id": "u2"},
		"subscription": map[string]any{"id": "sub_9"},
	})
	_, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, events.records, 1)
	rec := events.records[0]
	require.NotNil(t, rec.mapping)
	assert.Equal(t, "sub_9", rec.mapping.SubscriptionID)
	assert.Equal(t, "u2", rec.mapping.UserID)
	// Tier credits arrive via invoice.paid, not the checkout event.
	assert.Nil(t, rec.grant)
}

func TestProcessCheckoutCompletedWithoutUserRecordsOnly(t *testing.T) {
	events := newFakePaymentEventRepo()
	svc := newTestStripeService(events, fakeLineItemLister{}, fakeSubscriptionFetcher{})

	ev := checkoutCompletedEvent(t, "evt_3", map[string]any{"id": "cs_3", "mode": "payment"})
	_, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, events.records, 1)
	assert.Nil(t, events.records[0].mapping)
	assert.Nil(t, events.records[0].grant)
}

func TestProcessInvoicePaidGrantsTierCredits(t *testing.T) {
	events := newFakePaymentEventRepo()
	events.subUsers["sub_9"] = "u2"
	fetcher := fakeSubscriptionFetcher{sub: &stripe.Subscription{
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
			{Price: &stripe.Price{ID: "price_tier_glam"}},
		}},
	}}
	svc := newTestStripeService(events, fakeLineItemLister{}, fetcher)

	ev := invoicePaidEvent(t, "evt_4", map[string]any{
		"id":      "in_1",
		"created": 1772323200,
		"lines": map[string]any{"data": []map[string]any{
			{"subscription": map[string]any{"id": "sub_9"}},
		}},
	})
	_, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, events.records, 1)
	rec := events.records[0]
	require.NotNil(t, rec.grant)
	assert.Equal(t, "u2", rec.grant.UserID)
	assert.Equal(t, 40, rec.grant.Credits)
}

func TestProcessInvoicePaidUnmappedSubscriptionRecordsOnly(t *testing.T) {
	events := newFakePaymentEventRepo()
	svc := newTestStripeService(events, fakeLineItemLister{}, fakeSubscriptionFetcher{})

	ev := invoicePaidEvent(t, "evt_5", map[string]any{
		"id": "in_2",
		"lines": map[string]any{"data": []map[string]any{
			{"subscription": map[string]any{"id": "sub_unknown"}},
		}},
	})
	_, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, events.records, 1)
	assert.Nil(t, events.records[0].grant)
}

func TestProcessEventDuplicateDeliveryIsAcknowledged(t *testing.T) {
	events := newFakePaymentEventRepo()
	lister := fakeLineItemLister{items: []*stripe.LineItem{
		{Price: &stripe.Price{ID: "price_pack_25"}, Quantity: 1},
	}}
	svc := newTestStripeService(events, lister, fakeSubscriptionFetcher{})

	ev := checkoutCompletedEvent(t, "evt_6", map[string]any{
		"id":       "cs_6",
		"mode":     "payment",
		"metadata": map[string]string{"user_id": "u1"},
	})

	duplicate, err := svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, duplicate)

	duplicate, err = svc.ProcessEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Len(t, events.records, 1, "duplicate delivery must not re-credit")
}

func TestProcessEventUnknownTypeIsRecorded(t *testing.T) {
	events := newFakePaymentEventRepo()
	svc := newTestStripeService(events, fakeLineItemLister{}, fakeSubscriptionFetcher{})

	duplicate, err := svc.ProcessEvent(context.Background(), stripe.Event{ID: "evt_7", Type: "customer.created"})
	require.NoError(t, err)
	assert.False(t, duplicate)
	require.Len(t, events.records, 1)
	assert.Nil(t, events.records[0].grant)
}

func TestProcessCheckoutCompletedLineItemFailureRetries(t *testing.T) {
	events := newFakePaymentEventRepo()
	lister := fakeLineItemLister{err: errors.New("stripe unavailable")}
	svc := newTestStripeService(events, lister, fakeSubscriptionFetcher{})

	ev := checkoutCompletedEvent(t, "evt_8", map[string]any{
		"id":       "cs_8",
		"mode":     "payment",
		"metadata": map[string]string{"user_id": "u1"},
	})
	_, err := svc.ProcessEvent(context.Background(), ev)
	require.Error(t, err)
	assert.Empty(t, events.records, "a failed event must stay unrecorded so Stripe can redeliver")
}
