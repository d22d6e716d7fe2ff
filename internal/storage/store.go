package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"otcdesk/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrConflict indicates a conditional update lost its race: the row
	// no longer satisfied the guard when the write applied.
	ErrConflict = errors.New("storage: conditional update conflict")
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// GroupStore exposes markup configuration reads and writes.
type GroupStore interface {
	GetGroupConfig(ctx context.Context, groupID int64) (*GroupConfig, error)
	UpsertGroupConfig(ctx context.Context, cfg GroupConfig) error
	DeleteGroupConfig(ctx context.Context, groupID int64) error
	GetGlobalSettings(ctx context.Context) (GlobalSettings, error)
	UpdateGlobalSettings(ctx context.Context, settings GlobalSettings) error
}

// ObservationStore appends and reads the price-history log.
type ObservationStore interface {
	AppendObservation(ctx context.Context, obs PriceObservation) error
	ListObservationsBetween(ctx context.Context, from, to time.Time) ([]PriceObservation, error)
	ListRecentObservations(ctx context.Context, limit int) ([]PriceObservation, error)
}

// TransactionStore persists settlement transactions. TransitionTransaction
// applies the status change and its audit entry as one database transaction;
// it returns ErrConflict when the status moved underneath the caller.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TxFilter) ([]Transaction, error)
	TransitionTransaction(ctx context.Context, transactionID string, from, to TxStatus, paymentHash *string, at time.Time, audit AuditEntry) error
}

// AccountStore manages the dispatch pool. TryAssignAccount performs the
// compare-and-increment against the capacity ceiling in a single statement.
type AccountStore interface {
	ListSelectableAccounts(ctx context.Context) ([]ServiceAccount, error)
	TryAssignAccount(ctx context.Context, accountID int64, record AssignmentRecord) (bool, error)
	ReleaseAccount(ctx context.Context, accountID int64) error
	UpsertServiceAccount(ctx context.Context, account ServiceAccount) error
}

// AlertRuleStore manages threshold alert rules. TouchAlertRule advances
// last_notified_at only when the debounce window has elapsed, reporting
// whether the caller won the update.
type AlertRuleStore interface {
	CreateAlertRule(ctx context.Context, rule AlertRule) (AlertRule, error)
	ListActiveAlertRules(ctx context.Context) ([]AlertRule, error)
	ListAlertRulesByUser(ctx context.Context, userID int64) ([]AlertRule, error)
	DeactivateAlertRule(ctx context.Context, id, userID int64) error
	TouchAlertRule(ctx context.Context, id int64, now time.Time, debounce time.Duration) (bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to all otcdesk tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort; the lock dies with the session anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ GroupStore       = (*Store)(nil)
	_ ObservationStore = (*Store)(nil)
	_ TransactionStore = (*Store)(nil)
	_ AccountStore     = (*Store)(nil)
	_ AlertRuleStore   = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
