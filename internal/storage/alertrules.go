package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	createAlertRuleSQL = `INSERT INTO alert_rules (
        user_id, alert_type, comparison_operator, threshold_value, is_active
    ) VALUES ($1,$2,$3,$4,true)
    RETURNING id, user_id, alert_type, comparison_operator, threshold_value,
              is_active, notification_count, last_notified_at, created_at;`

	listActiveAlertRulesSQL = `SELECT
        id, user_id, alert_type, comparison_operator, threshold_value,
        is_active, notification_count, last_notified_at, created_at
    FROM alert_rules
    WHERE is_active
    ORDER BY id;`

	listAlertRulesByUserSQL = `SELECT
        id, user_id, alert_type, comparison_operator, threshold_value,
        is_active, notification_count, last_notified_at, created_at
    FROM alert_rules
    WHERE user_id = $1
    ORDER BY id;`

	deactivateAlertRuleSQL = `UPDATE alert_rules
    SET is_active = false
    WHERE id = $1 AND user_id = $2;`

	// Advancing last_notified_at and the debounce check happen in one
	// statement so concurrent ticks cannot double-notify a rule.
	touchAlertRuleSQL = `UPDATE alert_rules
    SET last_notified_at = $2, notification_count = notification_count + 1
    WHERE id = $1
      AND is_active
      AND (last_notified_at IS NULL OR last_notified_at <= $3);`
)

// CreateAlertRule inserts an active rule and returns the stored row.
func (s *Store) CreateAlertRule(ctx context.Context, rule AlertRule) (AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	row := pool.QueryRow(ctx, createAlertRuleSQL,
		rule.UserID,
		rule.AlertType,
		string(rule.Operator),
		rule.Threshold.String(),
	)
	created, scanErr := scanAlertRule(row)
	if scanErr != nil {
		return AlertRule{}, fmt.Errorf("create alert rule: %w", scanErr)
	}
	return created, nil
}

// ListActiveAlertRules lists every rule the monitor must evaluate.
func (s *Store) ListActiveAlertRules(ctx context.Context) ([]AlertRule, error) {
	return s.listAlertRules(ctx, listActiveAlertRulesSQL)
}

// ListAlertRulesByUser lists the rules owned by one user.
func (s *Store) ListAlertRulesByUser(ctx context.Context, userID int64) ([]AlertRule, error) {
	return s.listAlertRules(ctx, listAlertRulesByUserSQL, userID)
}

func (s *Store) listAlertRules(ctx context.Context, query string, args ...interface{}) ([]AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list alert rules: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]AlertRule, 0)
	for rows.Next() {
		rule, scanErr := scanAlertRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// DeactivateAlertRule disables a rule; only the owning user may do so.
func (s *Store) DeactivateAlertRule(ctx context.Context, id, userID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tag, execErr := pool.Exec(ctx, deactivateAlertRuleSQL, id, userID)
	if execErr != nil {
		return fmt.Errorf("deactivate alert rule: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAlertRule advances last_notified_at when the debounce window elapsed,
// reporting whether this caller won the update.
func (s *Store) TouchAlertRule(ctx context.Context, id int64, now time.Time, debounce time.Duration) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cutoff := now.Add(-debounce)
	tag, execErr := pool.Exec(ctx, touchAlertRuleSQL, id, now, cutoff)
	if execErr != nil {
		return false, fmt.Errorf("touch alert rule: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAlertRule(row pgx.Row) (AlertRule, error) {
	var (
		rule         AlertRule
		operator     string
		thresholdStr string
	)
	if err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.AlertType,
		&operator,
		&thresholdStr,
		&rule.IsActive,
		&rule.NotificationCount,
		&rule.LastNotifiedAt,
		&rule.CreatedAt,
	); err != nil {
		return AlertRule{}, err
	}

	parsedOp, err := ParseCompareOp(operator)
	if err != nil {
		return AlertRule{}, err
	}
	rule.Operator = parsedOp

	rule.Threshold, err = decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRule{}, fmt.Errorf("parse threshold: %w", err)
	}
	return rule, nil
}
