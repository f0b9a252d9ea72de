// README: Pricing store backed by PostgreSQL (configs, smoothing state, quote audit log).
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfigStore supplies and replaces the PricingConfig for a scope.
// PutConfig assigns the next version and returns the stored config.
type ConfigStore interface {
	GetConfig(ctx context.Context, scope string) (PricingConfig, error)
	PutConfig(ctx context.Context, scope string, cfg PricingConfig) (PricingConfig, error)
}

// AuditLog is append-only: a quote is never updated after Append.
type AuditLog interface {
	AppendQuote(ctx context.Context, q PriceQuote) error
	GetQuote(ctx context.Context, id string) (PriceQuote, error)
	ListQuotes(ctx context.Context, scope string, since time.Time, limit int) ([]PriceQuote, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetConfig(ctx context.Context, scope string) (PricingConfig, error) {
	row := s.db.QueryRow(ctx, `
        SELECT config, version, updated_at
        FROM pricing_configs
        WHERE scope = $1`, scope,
	)
	var raw []byte
	var cfg PricingConfig
	var version int64
	var updatedAt time.Time
	err := row.Scan(&raw, &version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PricingConfig{}, ErrConfigNotFound
	}
	if err != nil {
		return PricingConfig{}, transient("get config", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return PricingConfig{}, invalidConfig("config", "stored document unreadable: %v", err)
	}
	cfg.Version = version
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, scope string, cfg PricingConfig) (PricingConfig, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return PricingConfig{}, err
	}
	row := s.db.QueryRow(ctx, `
        INSERT INTO pricing_configs (scope, config, version, updated_at)
        VALUES ($1, $2, 1, NOW())
        ON CONFLICT (scope) DO UPDATE SET
            config = EXCLUDED.config,
            version = pricing_configs.version + 1,
            updated_at = NOW()
        RETURNING version, updated_at`, scope, raw,
	)
	if err := row.Scan(&cfg.Version, &cfg.UpdatedAt); err != nil {
		return PricingConfig{}, transient("put config", err)
	}
	return cfg, nil
}

func (s *Store) LoadState(ctx context.Context, scope string) (SmoothingState, bool, error) {
	st := SmoothingState{Scope: scope}
	err := s.db.QueryRow(ctx, `
        SELECT multiplier, version, updated_at
        FROM pricing_smoothing_state
        WHERE scope = $1`, scope,
	).Scan(&st.Multiplier, &st.Version, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SmoothingState{}, false, nil
	}
	if err != nil {
		return SmoothingState{}, false, transient("get smoothing state", err)
	}
	return st, true, nil
}

// CompareAndSwap relies on the version column: the first write inserts
// version 1, later writes only match the row they read.
func (s *Store) CompareAndSwap(ctx context.Context, expectedVersion int64, next SmoothingState) error {
	var sql string
	args := []any{next.Scope, next.Multiplier, expectedVersion + 1, next.UpdatedAt}
	if expectedVersion == 0 {
		sql = `
        INSERT INTO pricing_smoothing_state (scope, multiplier, version, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (scope) DO NOTHING`
	} else {
		sql = `
        UPDATE pricing_smoothing_state
        SET multiplier = $2, version = $3, updated_at = $4
        WHERE scope = $1 AND version = $5`
		args = append(args, expectedVersion)
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return transient("write smoothing state", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrConcurrencyConflict
	}
	return nil
}

func (s *Store) AppendQuote(ctx context.Context, q PriceQuote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO price_quotes (id, scope, created_at, total_price, currency, payload)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.Scope, q.CreatedAt, q.TotalPrice.String(), q.Currency, payload,
	)
	if err != nil {
		return transient("append quote", err)
	}
	return nil
}

func (s *Store) GetQuote(ctx context.Context, id string) (PriceQuote, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM price_quotes WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return PriceQuote{}, ErrQuoteNotFound
	}
	if err != nil {
		return PriceQuote{}, transient("get quote", err)
	}
	var q PriceQuote
	if err := json.Unmarshal(payload, &q); err != nil {
		return PriceQuote{}, err
	}
	return q, nil
}

// ListQuotes returns the scope's quotes created at or after since, newest first.
func (s *Store) ListQuotes(ctx context.Context, scope string, since time.Time, limit int) ([]PriceQuote, error) {
	rows, err := s.db.Query(ctx, `
        SELECT payload
        FROM price_quotes
        WHERE scope = $1 AND created_at >= $2
        ORDER BY created_at DESC, id DESC
        LIMIT $3`, scope, since, limit,
	)
	if err != nil {
		return nil, transient("list quotes", err)
	}
	defer rows.Close()

	var out []PriceQuote
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, transient("list quotes", err)
		}
		var q PriceQuote
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("list quotes", err)
	}
	return out, nil
}
