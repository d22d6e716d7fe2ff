package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertTransactionSQL = `INSERT INTO transactions (
        transaction_id,
        group_id,
        user_id,
        cny_amount,
        usdt_amount,
        exchange_rate,
        markup,
        usdt_address,
        status,
        payment_hash,
        created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	getTransactionSQL = `SELECT
        transaction_id, group_id, user_id, cny_amount, usdt_amount,
        exchange_rate, markup, usdt_address, status, payment_hash,
        created_at, paid_at, confirmed_at, cancelled_at
    FROM transactions
    WHERE transaction_id = $1;`

	insertAuditSQL = `INSERT INTO audit_log (
        id, transaction_id, actor_id, operation, from_status, to_status, description
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`
)

var txTimestampColumn = map[TxStatus]string{
	TxPaid:      "paid_at",
	TxConfirmed: "confirmed_at",
	TxCancelled: "cancelled_at",
}

// InsertTransaction persists a freshly created settlement record.
func (s *Store) InsertTransaction(ctx context.Context, tx Transaction) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertTransactionSQL,
		tx.TransactionID,
		tx.GroupID,
		tx.UserID,
		tx.CNYAmount.String(),
		tx.USDTAmount.String(),
		tx.ExchangeRate.String(),
		tx.Markup.String(),
		tx.USDTAddress,
		string(tx.Status),
		tx.PaymentHash,
		tx.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert transaction: %w", execErr)
	}
	return nil
}

// GetTransaction reads a transaction by id, or ErrNotFound.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getTransactionSQL, transactionID)
	tx, scanErr := scanTransaction(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", scanErr)
	}
	return &tx, nil
}

// ListTransactions lists records matching the filter, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter TxFilter) ([]Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args := buildTxListQuery(filter)
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list transactions: %w", queryErr)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		tx, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, tx)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return transactions, nil
}

func buildTxListQuery(filter TxFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.GroupID != nil {
		add("group_id = $%d", *filter.GroupID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	if filter.MinAmount != nil {
		add("cny_amount >= $%d", filter.MinAmount.String())
	}
	if filter.MaxAmount != nil {
		add("cny_amount <= $%d", filter.MaxAmount.String())
	}

	query := strings.Builder{}
	query.WriteString(`SELECT
        transaction_id, group_id, user_id, cny_amount, usdt_amount,
        exchange_rate, markup, usdt_address, status, payment_hash,
        created_at, paid_at, confirmed_at, cancelled_at
    FROM transactions`)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}
	query.WriteString(";")

	return query.String(), args
}

// TransitionTransaction moves a record from one status to another and appends
// the audit entry in the same database transaction. The status guard in the
// UPDATE gives optimistic concurrency: zero rows affected means the status
// changed underneath the caller and ErrConflict is returned with nothing
// written.
func (s *Store) TransitionTransaction(ctx context.Context, transactionID string, from, to TxStatus, paymentHash *string, at time.Time, audit AuditEntry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	column, ok := txTimestampColumn[to]
	if !ok {
		return fmt.Errorf("no timestamp column for status %q", to)
	}

	updateSQL := fmt.Sprintf(`UPDATE transactions
    SET status = $1, %s = $2, payment_hash = COALESCE($3, payment_hash)
    WHERE transaction_id = $4 AND status = $5;`, column)

	dbTx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tag, execErr := dbTx.Exec(ctx, updateSQL, string(to), at, paymentHash, transactionID, string(from))
	if execErr != nil {
		return fmt.Errorf("update transaction status: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	if _, execErr := dbTx.Exec(ctx, insertAuditSQL,
		audit.ID,
		audit.TransactionID,
		audit.ActorID,
		audit.Operation,
		string(audit.FromStatus),
		string(audit.ToStatus),
		audit.Description,
	); execErr != nil {
		return fmt.Errorf("append audit entry: %w", execErr)
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit transition: %w", commitErr)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		tx        Transaction
		cnyStr    string
		usdtStr   string
		rateStr   string
		markupStr string
		status    string
	)

	if err := row.Scan(
		&tx.TransactionID,
		&tx.GroupID,
		&tx.UserID,
		&cnyStr,
		&usdtStr,
		&rateStr,
		&markupStr,
		&tx.USDTAddress,
		&status,
		&tx.PaymentHash,
		&tx.CreatedAt,
		&tx.PaidAt,
		&tx.ConfirmedAt,
		&tx.CancelledAt,
	); err != nil {
		return Transaction{}, err
	}

	parsed, err := ParseTxStatus(status)
	if err != nil {
		return Transaction{}, err
	}
	tx.Status = parsed

	if tx.CNYAmount, err = decimal.NewFromString(cnyStr); err != nil {
		return Transaction{}, fmt.Errorf("parse cny amount: %w", err)
	}
	if tx.USDTAmount, err = decimal.NewFromString(usdtStr); err != nil {
		return Transaction{}, fmt.Errorf("parse usdt amount: %w", err)
	}
	if tx.ExchangeRate, err = decimal.NewFromString(rateStr); err != nil {
		return Transaction{}, fmt.Errorf("parse exchange rate: %w", err)
	}
	if tx.Markup, err = decimal.NewFromString(markupStr); err != nil {
		return Transaction{}, fmt.Errorf("parse markup: %w", err)
	}

	return tx, nil
}
