package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventAlreadyProcessed is returned when the provider event id has been
// recorded before. The caller acknowledges the delivery without reprocessing.
var ErrEventAlreadyProcessed = errors.New("event_already_processed")

const pgUniqueViolation = "23505"

// PaymentEventRepository applies the effect of one payment-provider event
// exactly once. The idempotency record and the financial effect are written
// in a single transaction, so an event is never marked processed without its
// credit having been applied.
type PaymentEventRepository interface {
	// Record inserts the processed-event marker and, in the same transaction,
	// upserts the subscription mapping and/or applies the credit grant.
	// Either of mapping and grant may be nil. Returns
	// ErrEventAlreadyProcessed on a duplicate delivery.
	Record(ctx context.Context, eventID string, mapping *model.SubscriptionMapping, grant *model.CreditGrant) error
	// SubscriptionUser resolves a provider subscription id to the owning
	// user id, or "" if no mapping exists.
	SubscriptionUser(ctx context.Context, subscriptionID string) (string, error)
}

type paymentEventRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentEventRepo creates a new PaymentEventRepository.
func NewPaymentEventRepo(pool *pgxpool.Pool) PaymentEventRepository {
	return &paymentEventRepo{pool: pool}
}

func (r *paymentEventRepo) Record(ctx context.Context, eventID string, mapping *model.SubscriptionMapping, grant *model.CreditGrant) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for event %s: %w", eventID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertEventQ = `INSERT INTO stripe_processed_events (id) VALUES ($1)`
	if _, err := tx.Exec(ctx, insertEventQ, eventID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEventAlreadyProcessed
		}
		return fmt.Errorf("recording processed event %s: %w", eventID, err)
	}

	if mapping != nil {
		const upsertMappingQ = `
            INSERT INTO stripe_subscriptions (subscription_id, user_id, status, updated_at)
            VALUES ($1, $2, $3, NOW())
            ON CONFLICT (subscription_id) DO UPDATE
            SET user_id = EXCLUDED.user_id,
                status = EXCLUDED.status,
                updated_at = NOW()
        `
		if _, err := tx.Exec(ctx, upsertMappingQ, mapping.SubscriptionID, mapping.UserID, mapping.Status); err != nil {
			return fmt.Errorf("upserting subscription mapping %s: %w", mapping.SubscriptionID, err)
		}
	}

	if grant != nil && grant.Credits > 0 {
		// A credit grant stamps the grant month and resets the free counter;
		// it does not preserve an in-progress month's free usage.
		const creditQ = `
            INSERT INTO user_entitlements (user_id, period_start, free_used, paid_credits, updated_at)
            VALUES ($1, $2, 0, $3, NOW())
            ON CONFLICT (user_id) DO UPDATE
            SET paid_credits = user_entitlements.paid_credits + EXCLUDED.paid_credits,
                period_start = EXCLUDED.period_start,
                free_used = 0,
                updated_at = NOW()
        `
		if _, err := tx.Exec(ctx, creditQ, grant.UserID, grant.PeriodStart, grant.Credits); err != nil {
			return fmt.Errorf("crediting %d generations to user %s: %w", grant.Credits, grant.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing event %s: %w", eventID, err)
	}
	return nil
}

func (r *paymentEventRepo) SubscriptionUser(ctx context.Context, subscriptionID string) (string, error) {
	const q = `SELECT user_id FROM stripe_subscriptions WHERE subscription_id = $1`
	var userID string
	err := r.pool.QueryRow(ctx, q, subscriptionID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("resolve user for subscription %s: %w", subscriptionID, err)
	}
	return userID, nil
}
