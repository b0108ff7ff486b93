package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

func getMySQLAdapter(t *testing.T) (*MySQLAdapter, *sql.DB) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/marketplace?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	require.NoError(t, adapter.Migrate(context.Background()))
	return adapter, db
}

func TestAppendEvents_Success(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	base := uint64(time.Now().UnixNano())
	txID := uuid.New()
	events := []domain.Event{
		{ID: uuid.New(), Seq: base, TxID: txID, Op: "deposit", Source: "system:market", Kind: domain.KindDeposited, At: time.Now(), Payload: domain.Deposited{Account: "alice", Amount: 10}},
		{ID: uuid.New(), Seq: base + 1, TxID: txID, Op: "deposit", Source: "system:market", Kind: domain.KindDeposited, At: time.Now(), Payload: domain.Deposited{Account: "bob", Amount: 5}},
	}
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM ledger_events WHERE tx_id = ?`, txID.String()) })

	require.NoError(t, adapter.AppendEvents(ctx, events))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_events WHERE tx_id = ?`, txID.String()).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestAppendEvents_DuplicateSeqRollsBack(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	seq := uint64(time.Now().UnixNano())
	txID := uuid.New()
	ev := domain.Event{ID: uuid.New(), Seq: seq, TxID: txID, Op: "deposit", Source: "system:market", Kind: domain.KindDeposited, At: time.Now(), Payload: domain.Deposited{Account: "alice", Amount: 1}}
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM ledger_events WHERE tx_id = ?`, txID.String()) })

	fresh := ev
	fresh.Seq = seq + 1
	require.Error(t, adapter.AppendEvents(ctx, []domain.Event{fresh, ev, ev}))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_events WHERE tx_id = ?`, txID.String()).Scan(&count))
	assert.Zero(t, count, "a failed batch leaves no partial rows")
}

func TestProjectOrder_OptimisticLock(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	id := domain.OrderID(time.Now().UnixNano())
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id) })
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Shipped arrives before the creation fact
	require.NoError(t, adapter.ProjectOrder(ctx, domain.Order{ID: id, Status: domain.OrderStatusShipped, UpdatedAt: now}))

	err := adapter.ProjectOrder(ctx, domain.Order{ID: id, Buyer: "alice", ItemID: 3, Amount: 2, Status: domain.OrderStatusCreated, CreatedAt: now, UpdatedAt: now})
	require.ErrorIs(t, err, port.ErrOptimisticLock)

	o, err := adapter.GetOrder(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, domain.OrderStatusShipped, o.Status)
	assert.Equal(t, domain.Account("alice"), o.Buyer, "stale write still backfills identity")
	assert.Equal(t, domain.ItemID(3), o.ItemID)
	assert.Equal(t, domain.Quantity(2), o.Amount)
}

func TestProjectOrder_AdvancesVersion(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	id := domain.OrderID(time.Now().UnixNano())
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id) })
	now := time.Now().UTC()

	o := domain.Order{ID: id, Buyer: "alice", ItemID: 1, Amount: 1, Status: domain.OrderStatusCreated, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, adapter.ProjectOrder(ctx, o))
	o.Status = domain.OrderStatusPaid
	require.NoError(t, adapter.ProjectOrder(ctx, o))

	var version int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT version FROM orders WHERE id = ?`, id).Scan(&version))
	assert.Equal(t, 2, version)
}

func TestGetOrder_NotFound(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)

	o, err := adapter.GetOrder(context.Background(), domain.OrderID(1<<62))
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestPay_RecordsPayout(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	account := domain.Account("payout-" + uuid.NewString())
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM payouts WHERE account = ?`, string(account)) })

	require.NoError(t, adapter.Pay(ctx, account, 42))

	var amount uint64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT amount FROM payouts WHERE account = ?`, string(account)).Scan(&amount))
	assert.Equal(t, uint64(42), amount)
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestVersionAdvanced(t *testing.T) {
	assert.NoError(t, versionAdvanced(fakeResult{rows: 1}))
	assert.ErrorIs(t, versionAdvanced(fakeResult{rows: 0}), port.ErrOptimisticLock)

	driverErr := errors.New("driver: bad connection")
	err := versionAdvanced(fakeResult{err: driverErr})
	require.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, port.ErrOptimisticLock)
}
