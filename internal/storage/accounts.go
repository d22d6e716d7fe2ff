package storage

import (
	"context"
	"fmt"
)

const (
	listSelectableAccountsSQL = `SELECT
        account_id, username, display_name, weight, max_concurrent, current_assigned, status
    FROM service_accounts
    WHERE status IN ('available', 'busy')
      AND current_assigned < max_concurrent
    ORDER BY account_id;`

	listAllServiceAccountsSQL = `SELECT
        account_id, username, display_name, weight, max_concurrent, current_assigned, status
    FROM service_accounts
    ORDER BY account_id;`

	// The guard re-checks eligibility so two concurrent assignments can
	// never both pass the capacity ceiling.
	tryAssignAccountSQL = `UPDATE service_accounts
    SET current_assigned = current_assigned + 1
    WHERE account_id = $1
      AND status IN ('available', 'busy')
      AND current_assigned < max_concurrent;`

	releaseAccountSQL = `UPDATE service_accounts
    SET current_assigned = current_assigned - 1
    WHERE account_id = $1
      AND current_assigned > 0;`

	insertAssignmentSQL = `INSERT INTO assignments (
        id, user_id, account_id, username, method
    ) VALUES ($1,$2,$3,$4,$5);`

	upsertServiceAccountSQL = `INSERT INTO service_accounts (
        account_id, username, display_name, weight, max_concurrent, current_assigned, status
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (account_id) DO UPDATE
    SET username       = EXCLUDED.username,
        display_name   = EXCLUDED.display_name,
        weight         = EXCLUDED.weight,
        max_concurrent = EXCLUDED.max_concurrent,
        status         = EXCLUDED.status;`
)

// ListSelectableAccounts returns the candidate set in stable account_id order.
func (s *Store) ListSelectableAccounts(ctx context.Context) ([]ServiceAccount, error) {
	return s.queryServiceAccounts(ctx, listSelectableAccountsSQL, "list selectable accounts")
}

// ListAllServiceAccounts returns every registered operator regardless of
// status or remaining capacity; this is the admin's view, not the dispatch
// candidate set.
func (s *Store) ListAllServiceAccounts(ctx context.Context) ([]ServiceAccount, error) {
	return s.queryServiceAccounts(ctx, listAllServiceAccountsSQL, "list service accounts")
}

func (s *Store) queryServiceAccounts(ctx context.Context, sql, op string) ([]ServiceAccount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql)
	if queryErr != nil {
		return nil, fmt.Errorf("%s: %w", op, queryErr)
	}
	defer rows.Close()

	accounts := make([]ServiceAccount, 0)
	for rows.Next() {
		var (
			account ServiceAccount
			status  string
		)
		if err := rows.Scan(
			&account.AccountID,
			&account.Username,
			&account.DisplayName,
			&account.Weight,
			&account.MaxConcurrent,
			&account.CurrentAssigned,
			&status,
		); err != nil {
			return nil, err
		}
		account.Status = AccountStatus(status)
		accounts = append(accounts, account)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return accounts, nil
}

// TryAssignAccount performs the conditional increment and records the
// assignment in one database transaction. It reports false, without error,
// when the account was no longer eligible.
func (s *Store) TryAssignAccount(ctx context.Context, accountID int64, record AssignmentRecord) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	dbTx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin assignment: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tag, execErr := dbTx.Exec(ctx, tryAssignAccountSQL, accountID)
	if execErr != nil {
		return false, fmt.Errorf("increment assignment counter: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, execErr := dbTx.Exec(ctx, insertAssignmentSQL,
		record.ID,
		record.UserID,
		record.AccountID,
		record.Username,
		record.Method,
	); execErr != nil {
		return false, fmt.Errorf("record assignment: %w", execErr)
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		return false, fmt.Errorf("commit assignment: %w", commitErr)
	}
	return true, nil
}

// ReleaseAccount decrements an account's live assignment counter.
func (s *Store) ReleaseAccount(ctx context.Context, accountID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, releaseAccountSQL, accountID); execErr != nil {
		return fmt.Errorf("release account: %w", execErr)
	}
	return nil
}

// UpsertServiceAccount creates or edits an operator account. current_assigned
// is only set on insert; live counters are owned by assign/release.
func (s *Store) UpsertServiceAccount(ctx context.Context, account ServiceAccount) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertServiceAccountSQL,
		account.AccountID,
		account.Username,
		account.DisplayName,
		account.Weight,
		account.MaxConcurrent,
		account.CurrentAssigned,
		string(account.Status),
	)
	if execErr != nil {
		return fmt.Errorf("upsert service account: %w", execErr)
	}
	return nil
}
