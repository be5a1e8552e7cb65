package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/logging"
	"github.com/jackmew/ZestExchange/models"
)

// Error types for retry logic
var (
	ErrDeadlock             = errors.New("deadlock detected")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrConnectionFailure    = errors.New("connection failure")
)

// MarketStats aggregates 24h trade history for one symbol.
type MarketStats struct {
	Symbol           string          `json:"symbol"`
	LastPrice        decimal.Decimal `json:"last_price"`
	High24h          decimal.Decimal `json:"high_24h"`
	Low24h           decimal.Decimal `json:"low_24h"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	Change24hPercent decimal.Decimal `json:"change_24h_percent"`
}

// TradeStore persists trade history to PostgreSQL. It is an analytics
// sink, not a source of truth for the book: writes are batched,
// idempotent, and retried on transient errors.
type TradeStore struct {
	db         *sql.DB
	maxRetries int
	retryDelay time.Duration
}

// NewTradeStore creates a store around an open database handle.
func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{
		db:         db,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
}

// SetRetryConfig sets the retry configuration
func (ts *TradeStore) SetRetryConfig(maxRetries int, retryDelay time.Duration) {
	ts.maxRetries = maxRetries
	ts.retryDelay = retryDelay
}

// EnsureSchema creates the trade_history table if it does not exist.
func (ts *TradeStore) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS trade_history (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			price NUMERIC(18, 8) NOT NULL,
			quantity NUMERIC(18, 8) NOT NULL,
			taker_side VARCHAR(4) NOT NULL,
			maker_order_id UUID NOT NULL,
			taker_order_id UUID NOT NULL,
			executed_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_executed_at
			ON trade_history (symbol, executed_at DESC);
	`

	if _, err := ts.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create trade_history schema: %w", err)
	}
	return nil
}

// InsertTrades persists a batch of trades in one transaction. Inserts
// use ON CONFLICT DO NOTHING so a retried batch never duplicates rows.
func (ts *TradeStore) InsertTrades(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	err := ts.executeWithRetry(ctx, func(ctx context.Context) error {
		return ts.insertTradesTx(ctx, trades)
	})
	if err != nil {
		logging.LogDBError("insert_trades", "trade_history", err, map[string]interface{}{
			"count":  len(trades),
			"symbol": trades[0].Symbol,
		})
		return err
	}

	logging.LogDBSuccess("insert_trades", "trade_history", len(trades))
	return nil
}

func (ts *TradeStore) insertTradesTx(ctx context.Context, trades []*models.Trade) error {
	tx, err := ts.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Ignore error; will fail if transaction already committed
	}()

	query := `
		INSERT INTO trade_history (
			id, symbol, price, quantity, taker_side,
			maker_order_id, taker_order_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	for _, trade := range trades {
		_, err := tx.ExecContext(ctx, query,
			trade.ID,
			trade.Symbol,
			trade.Price.String(),
			trade.Quantity.String(),
			trade.TakerSide,
			trade.MakerOrderID,
			trade.TakerOrderID,
			trade.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", trade.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRecentTrades returns the latest trades for a symbol, newest first.
func (ts *TradeStore) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]*models.Trade, error) {
	query := `
		SELECT id, symbol, price, quantity, taker_side,
		       maker_order_id, taker_order_id, executed_at
		FROM trade_history
		WHERE symbol = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`

	rows, err := ts.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*models.Trade, 0, limit)
	for rows.Next() {
		var trade models.Trade
		var priceStr, quantityStr string

		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&priceStr,
			&quantityStr,
			&trade.TakerSide,
			&trade.MakerOrderID,
			&trade.TakerOrderID,
			&trade.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		trade.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		trade.Quantity, err = decimal.NewFromString(quantityStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}

		trades = append(trades, &trade)
	}

	return trades, rows.Err()
}

// Get24hStats aggregates the last 24 hours of trade history for a
// symbol. Returns nil when the symbol has no trades in the window.
func (ts *TradeStore) Get24hStats(ctx context.Context, symbol string) (*MarketStats, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	var highStr, lowStr, volumeStr sql.NullString
	err := ts.db.QueryRowContext(ctx, `
		SELECT MAX(price)::text, MIN(price)::text, COALESCE(SUM(quantity), 0)::text
		FROM trade_history
		WHERE symbol = $1 AND executed_at >= $2
	`, symbol, since).Scan(&highStr, &lowStr, &volumeStr)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	if !highStr.Valid {
		return nil, nil
	}

	stats := &MarketStats{Symbol: symbol}
	if stats.High24h, err = decimal.NewFromString(highStr.String); err != nil {
		return nil, fmt.Errorf("failed to parse high: %w", err)
	}
	if stats.Low24h, err = decimal.NewFromString(lowStr.String); err != nil {
		return nil, fmt.Errorf("failed to parse low: %w", err)
	}
	if stats.Volume24h, err = decimal.NewFromString(volumeStr.String); err != nil {
		return nil, fmt.Errorf("failed to parse volume: %w", err)
	}

	var lastStr, openStr string
	err = ts.db.QueryRowContext(ctx, `
		SELECT price::text FROM trade_history
		WHERE symbol = $1
		ORDER BY executed_at DESC LIMIT 1
	`, symbol).Scan(&lastStr)
	if err != nil {
		return nil, fmt.Errorf("failed to query last price: %w", err)
	}

	err = ts.db.QueryRowContext(ctx, `
		SELECT price::text FROM trade_history
		WHERE symbol = $1 AND executed_at >= $2
		ORDER BY executed_at ASC LIMIT 1
	`, symbol, since).Scan(&openStr)
	if err != nil {
		return nil, fmt.Errorf("failed to query open price: %w", err)
	}

	if stats.LastPrice, err = decimal.NewFromString(lastStr); err != nil {
		return nil, fmt.Errorf("failed to parse last price: %w", err)
	}
	openPrice, err := decimal.NewFromString(openStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse open price: %w", err)
	}

	if openPrice.GreaterThan(decimal.Zero) {
		stats.Change24hPercent = stats.LastPrice.Sub(openPrice).
			Div(openPrice).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return stats, nil
}

// executeWithRetry executes a function with retry logic for transient errors
func (ts *TradeStore) executeWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= ts.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !ts.isRetryableError(err) {
			return err
		}

		if attempt < ts.maxRetries {
			// Exponential backoff
			delay := ts.retryDelay * time.Duration(1<<uint(attempt))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryableError determines if an error is transient and should be retried
func (ts *TradeStore) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001": // serialization_failure
			return true
		case "40P01": // deadlock_detected
			return true
		case "08000", "08003", "08006": // connection_exception, connection_does_not_exist, connection_failure
			return true
		case "57P03": // cannot_connect_now
			return true
		}
	}

	return errors.Is(err, ErrDeadlock) ||
		errors.Is(err, ErrSerializationFailure) ||
		errors.Is(err, ErrConnectionFailure)
}
