package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	getGroupConfigSQL = `SELECT group_id, markup, usdt_address, updated_at
    FROM group_configs
    WHERE group_id = $1;`

	upsertGroupConfigSQL = `INSERT INTO group_configs (group_id, markup, usdt_address, updated_at)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (group_id) DO UPDATE
    SET markup       = EXCLUDED.markup,
        usdt_address = EXCLUDED.usdt_address,
        updated_at   = now();`

	deleteGroupConfigSQL = `DELETE FROM group_configs WHERE group_id = $1;`

	getGlobalSettingsSQL = `SELECT markup, usdt_address, strategy, updated_at
    FROM global_settings
    WHERE id = 1;`

	updateGlobalSettingsSQL = `INSERT INTO global_settings (id, markup, usdt_address, strategy, updated_at)
    VALUES (1, $1, $2, $3, now())
    ON CONFLICT (id) DO UPDATE
    SET markup       = EXCLUDED.markup,
        usdt_address = EXCLUDED.usdt_address,
        strategy     = EXCLUDED.strategy,
        updated_at   = now();`
)

// GetGroupConfig fetches a group's markup override, or ErrNotFound.
func (s *Store) GetGroupConfig(ctx context.Context, groupID int64) (*GroupConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		cfg       GroupConfig
		markupStr string
	)
	row := pool.QueryRow(ctx, getGroupConfigSQL, groupID)
	if scanErr := row.Scan(&cfg.GroupID, &markupStr, &cfg.USDTAddress, &cfg.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group config: %w", scanErr)
	}

	cfg.Markup, err = decimal.NewFromString(markupStr)
	if err != nil {
		return nil, fmt.Errorf("parse group markup: %w", err)
	}
	return &cfg, nil
}

// UpsertGroupConfig creates or replaces a group override.
func (s *Store) UpsertGroupConfig(ctx context.Context, cfg GroupConfig) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertGroupConfigSQL, cfg.GroupID, cfg.Markup.String(), cfg.USDTAddress); execErr != nil {
		return fmt.Errorf("upsert group config: %w", execErr)
	}
	return nil
}

// DeleteGroupConfig removes an override so the group falls back to global defaults.
func (s *Store) DeleteGroupConfig(ctx context.Context, groupID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteGroupConfigSQL, groupID); execErr != nil {
		return fmt.Errorf("delete group config: %w", execErr)
	}
	return nil
}

// GetGlobalSettings reads the singleton settings row. A missing row yields
// ErrNotFound so callers can apply their own bootstrap defaults.
func (s *Store) GetGlobalSettings(ctx context.Context) (GlobalSettings, error) {
	pool, err := s.getPool()
	if err != nil {
		return GlobalSettings{}, err
	}

	var (
		settings  GlobalSettings
		markupStr string
	)
	row := pool.QueryRow(ctx, getGlobalSettingsSQL)
	if scanErr := row.Scan(&markupStr, &settings.USDTAddress, &settings.Strategy, &settings.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return GlobalSettings{}, ErrNotFound
		}
		return GlobalSettings{}, fmt.Errorf("get global settings: %w", scanErr)
	}

	settings.Markup, err = decimal.NewFromString(markupStr)
	if err != nil {
		return GlobalSettings{}, fmt.Errorf("parse global markup: %w", err)
	}
	return settings, nil
}

// UpdateGlobalSettings replaces the singleton settings row.
func (s *Store) UpdateGlobalSettings(ctx context.Context, settings GlobalSettings) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, updateGlobalSettingsSQL, settings.Markup.String(), settings.USDTAddress, settings.Strategy); execErr != nil {
		return fmt.Errorf("update global settings: %w", execErr)
	}
	return nil
}
