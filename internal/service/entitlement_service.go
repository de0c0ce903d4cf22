package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// QuotaExhaustedError means both budgets are empty. Not a fault: the caller
// needs a new month or a purchase. Snapshot is what the client renders.
type QuotaExhaustedError struct {
	Snapshot model.QuotaSnapshot
}

func (e *QuotaExhaustedError) Error() string {
	return "quota_exhausted"
}

// EntitlementService decides whether a generation may proceed and applies
// the debit. Free budget is strictly preferred over paid credits.
type EntitlementService interface {
	// Snapshot is the read-only quota projection; no side effects.
	Snapshot(ctx context.Context, userID string, now time.Time) (*model.QuotaSnapshot, error)
	// Debit reserves one generation against the appropriate budget before
	// the expensive model call. Returns *QuotaExhaustedError when neither
	// budget has room.
	Debit(ctx context.Context, userID string, now time.Time) (model.Budget, *model.UserEntitlement, error)
}

type entitlementService struct {
	repo      repository.EntitlementRepository
	freeLimit int
	logger    zerolog.Logger
}

// NewEntitlementService creates an EntitlementService with a scoped logger.
func NewEntitlementService(repo repository.EntitlementRepository, freeLimit int, logger zerolog.Logger) EntitlementService {
	return &entitlementService{
		repo:      repo,
		freeLimit: freeLimit,
		logger:    logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) Snapshot(ctx context.Context, userID string, now time.Time) (*model.QuotaSnapshot, error) {
	row, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch entitlement row")
		return nil, err
	}
	return s.snapshotFromRow(userID, row, now), nil
}

// snapshotFromRow applies the stale-month rule: a row stamped with a prior
// month reads as zero free usage without rewriting the stored row.
func (s *entitlementService) snapshotFromRow(userID string, row *model.UserEntitlement, now time.Time) *model.QuotaSnapshot {
	periodStart := model.MonthStartUTC(now)

	freeUsed := 0
	paidCredits := 0
	if row != nil {
		paidCredits = row.PaidCredits
		if row.PeriodStart.UTC().Equal(periodStart) {
			freeUsed = row.FreeUsed
		}
	}

	freeRemaining := s.freeLimit - freeUsed
	if freeRemaining < 0 {
		freeRemaining = 0
	}

	return &model.QuotaSnapshot{
		UserID:        userID,
		PeriodStart:   periodStart,
		FreeLimit:     s.freeLimit,
		FreeUsed:      freeUsed,
		FreeRemaining: freeRemaining,
		PaidCredits:   paidCredits,
	}
}

func (s *entitlementService) Debit(ctx context.Context, userID string, now time.Time) (model.Budget, *model.UserEntitlement, error) {
	periodStart := model.MonthStartUTC(now)

	row, err := s.repo.DebitFree(ctx, userID, periodStart, s.freeLimit)
	if err == nil {
		return model.BudgetFree, row, nil
	}
	if !errors.Is(err, repository.ErrFreeQuotaExhausted) {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Free-budget debit failed")
		return "", nil, fmt.Errorf("debit free budget: %w", err)
	}

	row, err = s.repo.DebitPaidCredit(ctx, userID)
	if err == nil {
		return model.BudgetPaidCredit, row, nil
	}
	if !errors.Is(err, repository.ErrNoPaidCredits) {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Paid-credit debit failed")
		return "", nil, fmt.Errorf("debit paid credit: %w", err)
	}

	// Both budgets declined; read the row once more for the client snapshot.
	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch entitlement for exhausted snapshot")
		return "", nil, err
	}
	return "", nil, &QuotaExhaustedError{Snapshot: *s.snapshotFromRow(userID, current, now)}
}
