package store

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"solsignal/internal/alerts/models"
	id "solsignal/pkg/domain"
	"solsignal/pkg/platform/sentinel"
	txcontext "solsignal/pkg/platform/tx"
)

const uniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresSubscriptionStore persists subscriptions in the alerts table.
// Inserts and deletes fire the alerts_lifecycle trigger that feeds the outbox.
type PostgresSubscriptionStore struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures the Postgres stores.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	clock Clock
}

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(c *postgresConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func newPostgresConfig(opts []PostgresOption) postgresConfig {
	cfg := postgresConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func NewPostgresSubscriptionStore(db *sql.DB, opts ...PostgresOption) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db, clock: newPostgresConfig(opts).clock}
}

const subscriptionColumns = `id, wallet_address, email, user_id, webhook_id, created_at`

func (s *PostgresSubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID.IsNil() {
		sub.ID = id.NewSubscriptionID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.clock().UTC()
	}
	query := `
		INSERT INTO alerts (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		sub.WalletAddress,
		sub.Email,
		sub.UserID,
		sub.RegistryListID,
		sub.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PostgresSubscriptionStore) Get(ctx context.Context, subscriptionID id.SubscriptionID) (*models.Subscription, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM alerts WHERE id = $1`, uuid.UUID(subscriptionID))
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresSubscriptionStore) Delete(ctx context.Context, subscriptionID id.SubscriptionID) error {
	res, err := execer(ctx, s.db).ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, uuid.UUID(subscriptionID))
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresSubscriptionStore) ListByAddress(ctx context.Context, address string) ([]models.Subscription, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM alerts
		WHERE wallet_address = $1
		ORDER BY created_at, id
	`, address)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by address: %w", err)
	}
	defer rows.Close()

	subs := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PostgresSubscriptionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := execer(ctx, s.db).QueryRowContext(ctx, `SELECT count(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}

func (s *PostgresSubscriptionStore) CountByAddress(ctx context.Context, address string) (int64, error) {
	var n int64
	err := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM alerts WHERE wallet_address = $1`, address).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions by address: %w", err)
	}
	return n, nil
}

func (s *PostgresSubscriptionStore) LinkRegistry(ctx context.Context, subscriptionID id.SubscriptionID, listID string) error {
	res, err := execer(ctx, s.db).ExecContext(ctx,
		`UPDATE alerts SET webhook_id = $2 WHERE id = $1`, uuid.UUID(subscriptionID), listID)
	if err != nil {
		return fmt.Errorf("link subscription registry: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub   models.Subscription
		subID uuid.UUID
	)
	if err := row.Scan(&subID, &sub.WalletAddress, &sub.Email, &sub.UserID, &sub.RegistryListID, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.ID = id.SubscriptionID(subID)
	sub.CreatedAt = sub.CreatedAt.UTC()
	return &sub, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresDeliveryLog appends delivery records to sent_alerts.
type PostgresDeliveryLog struct {
	db *sql.DB
}

func NewPostgresDeliveryLog(db *sql.DB) *PostgresDeliveryLog {
	return &PostgresDeliveryLog{db: db}
}

func (l *PostgresDeliveryLog) Append(ctx context.Context, record models.DeliveryRecord) error {
	if record.ID.IsNil() {
		record.ID = id.NewDeliveryID()
	}
	sub := record.Subscription
	_, err := execer(ctx, l.db).ExecContext(ctx, `
		INSERT INTO sent_alerts (
			id, alert_id, wallet_address, email, user_id, webhook_id,
			alert_created_at, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(record.ID),
		uuid.UUID(sub.ID),
		sub.WalletAddress,
		sub.Email,
		sub.UserID,
		sub.RegistryListID,
		sub.CreatedAt,
		string(record.Status),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}
	return nil
}

// PostgresAggregateStore keeps the aggregate document in system_config.
type PostgresAggregateStore struct {
	db    *sql.DB
	docID string
	clock Clock
}

func NewPostgresAggregateStore(db *sql.DB, docID string, opts ...PostgresOption) *PostgresAggregateStore {
	return &PostgresAggregateStore{db: db, docID: docID, clock: newPostgresConfig(opts).clock}
}

func (s *PostgresAggregateStore) SetSubscriptionCount(ctx context.Context, count int64) error {
	_, err := execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO system_config (id, system_alert_count, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			system_alert_count = EXCLUDED.system_alert_count,
			updated_at = EXCLUDED.updated_at
	`, s.docID, count, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("set subscription count: %w", err)
	}
	return nil
}

func (s *PostgresAggregateStore) Aggregate(ctx context.Context) (models.AggregateConfig, error) {
	var cfg models.AggregateConfig
	err := execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT system_alert_count, updated_at FROM system_config WHERE id = $1`, s.docID,
	).Scan(&cfg.SystemAlertCount, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AggregateConfig{}, nil
	}
	if err != nil {
		return models.AggregateConfig{}, fmt.Errorf("read aggregate: %w", err)
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}

// PostgresOutbox leases lifecycle events written by the alerts_lifecycle trigger.
type PostgresOutbox struct {
	db *sql.DB
}

func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// alertRow mirrors to_jsonb(alerts row) as written by the trigger.
type alertRow struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Email         string    `json:"email"`
	UserID        string    `json:"user_id"`
	WebhookID     string    `json:"webhook_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Claim leases pending events with FOR UPDATE SKIP LOCKED so concurrent
// relays never receive the same event while a lease is live. An event is
// held back while an earlier event of the same subscription is still pending,
// leased or not.
func (o *PostgresOutbox) Claim(ctx context.Context, limit int, lease time.Duration) ([]models.LifecycleEvent, error) {
	rows, err := execer(ctx, o.db).QueryContext(ctx, `
		UPDATE alert_events
		SET claimed_until = now() + make_interval(secs => $2)
		WHERE id IN (
			SELECT e.id FROM alert_events e
			WHERE e.processed_at IS NULL
			  AND NOT e.dead
			  AND (e.claimed_until IS NULL OR e.claimed_until < now())
			  AND NOT EXISTS (
				SELECT 1 FROM alert_events prior
				WHERE prior.alert_id = e.alert_id
				  AND prior.id < e.id
				  AND prior.processed_at IS NULL
				  AND NOT prior.dead
			  )
			ORDER BY e.id
			LIMIT $1
			FOR UPDATE OF e SKIP LOCKED
		)
		RETURNING id, event_type, payload, created_at, attempts
	`, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.LifecycleEvent
	for rows.Next() {
		var (
			event   models.LifecycleEvent
			evType  string
			payload []byte
		)
		if err := rows.Scan(&event.ID, &evType, &payload, &event.CreatedAt, &event.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		var row alertRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode outbox payload %d: %w", event.ID, err)
		}
		event.Type = models.LifecycleEventType(evType)
		event.CreatedAt = event.CreatedAt.UTC()
		event.Subscription = models.Subscription{
			ID:             id.SubscriptionID(row.ID),
			WalletAddress:  row.WalletAddress,
			Email:          row.Email,
			UserID:         row.UserID,
			RegistryListID: row.WebhookID,
			CreatedAt:      row.CreatedAt.UTC(),
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	slices.SortFunc(events, func(a, b models.LifecycleEvent) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

func (o *PostgresOutbox) MarkDone(ctx context.Context, eventIDs []int64) error {
	if len(eventIDs) == 0 {
		return nil
	}
	_, err := execer(ctx, o.db).ExecContext(ctx, `
		UPDATE alert_events
		SET processed_at = now(), claimed_until = NULL
		WHERE id = ANY($1)
	`, pq.Array(eventIDs))
	if err != nil {
		return fmt.Errorf("mark outbox events done: %w", err)
	}
	return nil
}

func (o *PostgresOutbox) MarkFailed(ctx context.Context, eventID int64, cause string, dead bool) error {
	res, err := execer(ctx, o.db).ExecContext(ctx, `
		UPDATE alert_events
		SET attempts = attempts + 1,
			last_error = $2,
			dead = $3,
			claimed_until = NULL
		WHERE id = $1
	`, eventID, cause, dead)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return requireAffected(res)
}
