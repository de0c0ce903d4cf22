package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrFreeQuotaExhausted is returned when the monthly free budget is spent.
var ErrFreeQuotaExhausted = errors.New("free_quota_exhausted")

// ErrNoPaidCredits is returned when the paid-credit balance is zero.
var ErrNoPaidCredits = errors.New("no_paid_credits")

// EntitlementRepository owns the per-user quota row. Both debit methods are
// single conditional statements: the check and the write cannot be split by
// a concurrent request for the same user.
type EntitlementRepository interface {
	// Get returns the stored entitlement row, or nil if the user has none yet.
	Get(ctx context.Context, userID string) (*model.UserEntitlement, error)
	// DebitFree consumes one free generation for the given period, resetting
	// the counter first when the stored row belongs to an earlier month.
	// Returns ErrFreeQuotaExhausted when the period's budget is already spent.
	DebitFree(ctx context.Context, userID string, periodStart time.Time, freeLimit int) (*model.UserEntitlement, error)
	// DebitPaidCredit consumes one paid credit. Returns ErrNoPaidCredits when
	// the balance is zero or the user has no row.
	DebitPaidCredit(ctx context.Context, userID string) (*model.UserEntitlement, error)
}

type entitlementRepo struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepo creates a new EntitlementRepository.
func NewEntitlementRepo(pool *pgxpool.Pool) EntitlementRepository {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Get(ctx context.Context, userID string) (*model.UserEntitlement, error) {
	const q = `
        SELECT user_id, period_start, free_used, paid_credits, updated_at
        FROM user_entitlements
        WHERE user_id = $1
    `
	var e model.UserEntitlement
	err := r.pool.QueryRow(ctx, q, userID).Scan(&e.UserID, &e.PeriodStart, &e.FreeUsed, &e.PaidCredits, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch entitlement for user %s: %w", userID, err)
	}
	return &e, nil
}

// DebitFree is the "increment free_used only if still under the limit"
// operation. A row stamped with an earlier period_start counts as zero usage
// and is rolled over to the new period in the same statement. Zero rows back
// means the conditional update declined: the free budget is spent.
func (r *entitlementRepo) DebitFree(ctx context.Context, userID string, periodStart time.Time, freeLimit int) (*model.UserEntitlement, error) {
	if freeLimit <= 0 {
		return nil, ErrFreeQuotaExhausted
	}
	const q = `
        INSERT INTO user_entitlements (user_id, period_start, free_used, paid_credits, updated_at)
        VALUES ($1, $2, 1, 0, NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET free_used = CASE
                WHEN user_entitlements.period_start < EXCLUDED.period_start THEN 1
                ELSE user_entitlements.free_used + 1
            END,
            period_start = EXCLUDED.period_start,
            updated_at = NOW()
        WHERE user_entitlements.period_start < EXCLUDED.period_start
           OR user_entitlements.free_used < $3
        RETURNING user_id, period_start, free_used, paid_credits, updated_at
    `
	var e model.UserEntitlement
	err := r.pool.QueryRow(ctx, q, userID, periodStart, freeLimit).Scan(&e.UserID, &e.PeriodStart, &e.FreeUsed, &e.PaidCredits, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFreeQuotaExhausted
		}
		return nil, fmt.Errorf("debit free generation for user %s: %w", userID, err)
	}
	return &e, nil
}

// DebitPaidCredit decrements the paid balance only while it is positive.
func (r *entitlementRepo) DebitPaidCredit(ctx context.Context, userID string) (*model.UserEntitlement, error) {
	const q = `
        UPDATE user_entitlements
        SET paid_credits = paid_credits - 1,
            updated_at = NOW()
        WHERE user_id = $1
          AND paid_credits > 0
        RETURNING user_id, period_start, free_used, paid_credits, updated_at
    `
	var e model.UserEntitlement
	err := r.pool.QueryRow(ctx, q, userID).Scan(&e.UserID, &e.PeriodStart, &e.FreeUsed, &e.PaidCredits, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPaidCredits
		}
		return nil, fmt.Errorf("debit paid credit for user %s: %w", userID, err)
	}
	return &e, nil
}
