package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntitlementService struct {
	debits   int
	budget   model.Budget
	debitErr error
}

func (f *fakeEntitlementService) Snapshot(ctx context.Context, userID string, now time.Time) (*model.QuotaSnapshot, error) {
	return &model.QuotaSnapshot{UserID: userID}, nil
}

func (f *fakeEntitlementService) Debit(ctx context.Context, userID string, now time.Time) (model.Budget, *model.UserEntitlement, error) {
	if f.debitErr != nil {
		return "", nil, f.debitErr
	}
	f.debits++
	return f.budget, &model.UserEntitlement{UserID: userID}, nil
}

type fakeEditor struct {
	calls int
	img   *model.InlineImage
	err   error
}

func (f *fakeEditor) Edit(ctx context.Context, img model.InlineImage, params model.StyleParams) (*model.InlineImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

type fakeStore struct {
	puts   map[string][]byte
	putErr error
	urlErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts[key] = data
	return nil
}

func (f *fakeStore) URL(ctx context.Context, key string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeAuditRepo struct {
	inserted  []*model.GenerationAuditEvent
	insertErr error
	events    []model.GenerationAuditEvent
	listErr   error
}

func (f *fakeAuditRepo) Insert(ctx context.Context, ev *model.GenerationAuditEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, ev)
	return nil
}

func (f *fakeAuditRepo) ListRecent(ctx context.Context, limit int) ([]model.GenerationAuditEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func testImage() model.InlineImage {
	return model.InlineImage{Data: []byte("input-bytes"), MimeType: "image/jpeg"}
}

func testParams() model.StyleParams {
	return model.StyleParams{Preset: "tape-in", Shade: "caramel", Length: "22in"}
}

func TestGenerateSuccessPersistsAndAudits(t *testing.T) {
	ents := &fakeEntitlementService{budget: model.BudgetFree}
	editor := &fakeEditor{img: &model.InlineImage{Data: []byte("edited-bytes"), MimeType: "image/png"}}
	store := newFakeStore()
	audit := &fakeAuditRepo{}
	svc := NewGenerationService(ents, editor, audit, store, time.Minute, zerolog.Nop())

	result, err := svc.Generate(context.Background(), "u1", "req-1", testImage(), testParams())
	require.NoError(t, err)

	assert.Equal(t, model.BudgetFree, result.Budget)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Contains(t, result.URL, "https://cdn.example.com/generations/tape-in/caramel/22in/")
	assert.Empty(t, result.ImageBase64)
	assert.Equal(t, 1, ents.debits)

	require.Len(t, audit.inserted, 1)
	ev := audit.inserted[0]
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, model.BudgetFree, ev.Kind)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, result.StoragePath, ev.StoragePath)
	assert.Contains(t, store.puts, result.StoragePath)
}

func TestGenerateModelFailureKeepsDebit(t *testing.T) {
	ents := &fakeEntitlementService{budget: model.BudgetFree}
	editor := &fakeEditor{err: errors.New("upstream 500")}
	svc := NewGenerationService(ents, editor, &fakeAuditRepo{}, newFakeStore(), time.Minute, zerolog.Nop())

	_, err := svc.Generate(context.Background(), "u1", "req-1", testImage(), testParams())
	require.ErrorIs(t, err, ErrModelFailure)
	assert.Equal(t, 1, ents.debits, "the debit lands before the model call and is not refunded")
}

func TestGenerateQuotaExhaustedSkipsModel(t *testing.T) {
	exhausted := &QuotaExhaustedError{Snapshot: model.QuotaSnapshot{UserID: "u1", FreeLimit: 15, FreeUsed: 15}}
	ents := &fakeEntitlementService{debitErr: exhausted}
	editor := &fakeEditor{}
	svc := NewGenerationService(ents, editor, &fakeAuditRepo{}, newFakeStore(), time.Minute, zerolog.Nop())

	_, err := svc.Generate(context.Background(), "u1", "req-1", testImage(), testParams())
	var got *QuotaExhaustedError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 0, editor.calls, "no model call without a successful debit")
}

func TestGenerateStorageFailureFallsBackToInline(t *testing.T) {
	ents := &fakeEntitlementService{budget: model.BudgetPaidCredit}
	edited := []byte("edited-bytes")
	editor := &fakeEditor{img: &model.InlineImage{Data: edited, MimeType: "image/png"}}
	store := newFakeStore()
	store.putErr = errors.New("bucket unavailable")
	svc := NewGenerationService(ents, editor, &fakeAuditRepo{}, store, time.Minute, zerolog.Nop())

	result, err := svc.Generate(context.Background(), "u1", "req-1", testImage(), testParams())
	require.NoError(t, err, "a lost artifact must not fail the generation")
	assert.Empty(t, result.URL)
	assert.Empty(t, result.StoragePath)
	assert.Equal(t, base64.StdEncoding.EncodeToString(edited), result.ImageBase64)
}

func TestGenerateAuditFailureIsNonFatal(t *testing.T) {
	ents := &fakeEntitlementService{budget: model.BudgetFree}
	editor := &fakeEditor{img: &model.InlineImage{Data: []byte("edited-bytes"), MimeType: "image/png"}}
	audit := &fakeAuditRepo{insertErr: errors.New("table missing")}
	svc := NewGenerationService(ents, editor, audit, newFakeStore(), time.Minute, zerolog.Nop())

	result, err := svc.Generate(context.Background(), "u1", "req-1", testImage(), testParams())
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
}

func TestListRecentResolvesURLs(t *testing.T) {
	audit := &fakeAuditRepo{events: []model.GenerationAuditEvent{
		{ID: 2, StoragePath: "generations/a/b/c/x.png"},
		{ID: 1, StoragePath: ""},
	}}
	svc := NewGenerationService(&fakeEntitlementService{}, &fakeEditor{}, audit, newFakeStore(), time.Minute, zerolog.Nop())

	events, urls, err := svc.ListRecent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://cdn.example.com/generations/a/b/c/x.png", urls[0])
	assert.Empty(t, urls[1], "events without a stored artifact have no URL")
}
