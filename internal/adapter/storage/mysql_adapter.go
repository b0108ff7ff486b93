package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

// Schema creates the tables the adapter writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
	seq        BIGINT UNSIGNED NOT NULL PRIMARY KEY,
	event_id   CHAR(36)        NOT NULL,
	tx_id      CHAR(36)        NOT NULL,
	op         VARCHAR(64)     NOT NULL,
	source     VARCHAR(128)    NOT NULL,
	kind       VARCHAR(64)     NOT NULL,
	payload    JSON            NOT NULL,
	created_at DATETIME(6)     NOT NULL,
	KEY idx_ledger_events_tx (tx_id)
);
CREATE TABLE IF NOT EXISTS orders (
	id         BIGINT UNSIGNED NOT NULL PRIMARY KEY,
	buyer      VARCHAR(128)    NOT NULL DEFAULT '',
	item_id    BIGINT UNSIGNED NOT NULL DEFAULT 0,
	amount     BIGINT UNSIGNED NOT NULL DEFAULT 0,
	status     VARCHAR(16)     NOT NULL,
	version    INT             NOT NULL,
	created_at DATETIME(6)     NULL,
	updated_at DATETIME(6)     NOT NULL
);
CREATE TABLE IF NOT EXISTS payouts (
	id         CHAR(36)        NOT NULL PRIMARY KEY,
	account    VARCHAR(128)    NOT NULL,
	amount     BIGINT UNSIGNED NOT NULL,
	created_at DATETIME(6)     NOT NULL
);`

// backfill fills identity columns an earlier partial projection left empty.
const backfill = `
	buyer      = IF(buyer = '', ?, buyer),
	item_id    = IF(item_id = 0, ?, item_id),
	amount     = IF(amount = 0, ?, amount),
	created_at = COALESCE(created_at, ?)`

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// Migrate applies Schema one statement at a time.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) AppendEvents(ctx context.Context, events []domain.Event) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_events (seq, event_id, tx_id, op, source, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert event: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		_, err = stmt.ExecContext(ctx,
			ev.Seq, ev.ID.String(), ev.TxID.String(), ev.Op, string(ev.Source), string(ev.Kind),
			string(payload), ev.At,
		)
		if err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}

	return tx.Commit()
}

// ProjectOrder stores the order at its status version. A write whose version
// is not newer than the stored one only backfills missing identity columns
// and returns port.ErrOptimisticLock.
func (m *MySQLAdapter) ProjectOrder(ctx context.Context, o domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := sql.NullTime{Time: o.CreatedAt, Valid: !o.CreatedAt.IsZero()}
	version := o.Status.Version()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM orders WHERE id = ? FOR UPDATE`, o.ID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, buyer, item_id, amount, status, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, string(o.Buyer), o.ItemID, o.Amount, string(o.Status), version, createdAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

	case err != nil:
		return fmt.Errorf("query order: %w", err)

	case current >= version:
		_, err = tx.ExecContext(ctx, `UPDATE orders SET`+backfill+` WHERE id = ?`,
			string(o.Buyer), o.ItemID, o.Amount, createdAt, o.ID,
		)
		if err != nil {
			return fmt.Errorf("backfill order: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		return port.ErrOptimisticLock

	default:
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?, version = ?, updated_at = ?,`+backfill+`
			WHERE id = ? AND version = ?`,
			string(o.Status), version, o.UpdatedAt,
			string(o.Buyer), o.ItemID, o.Amount, createdAt,
			o.ID, current,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := versionAdvanced(result); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// versionAdvanced reports ErrOptimisticLock when a version-guarded update
// matched no row.
func versionAdvanced(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	var (
		o         domain.Order
		buyer     string
		status    string
		createdAt sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, buyer, item_id, amount, status, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &buyer, &o.ItemID, &o.Amount, &status, &createdAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.Buyer = domain.Account(buyer)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = createdAt.Time
	return &o, nil
}

// Pay records an outgoing transfer. It implements host.Payer, so a failed
// insert reverts the withdrawal that requested it.
func (m *MySQLAdapter) Pay(ctx context.Context, to domain.Account, amount domain.Amount) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO payouts (id, account, amount, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.NewString(), string(to), uint64(amount), m.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}
