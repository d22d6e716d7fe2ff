package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	appendObservationSQL = `INSERT INTO price_observations (
        base_price, markup, final_price, source
    ) VALUES ($1, $2, $3, $4);`

	listObservationsBetweenSQL = `SELECT id, base_price, markup, final_price, source, created_at
    FROM price_observations
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	listRecentObservationsSQL = `SELECT id, base_price, markup, final_price, source, created_at
    FROM price_observations
    ORDER BY created_at DESC
    LIMIT $1;`
)

// AppendObservation writes one price-history entry. Observations are
// append-only; retention is handled outside this package.
func (s *Store) AppendObservation(ctx context.Context, obs PriceObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, appendObservationSQL,
		obs.BasePrice.String(),
		obs.Markup.String(),
		obs.FinalPrice.String(),
		obs.Source,
	)
	if execErr != nil {
		return fmt.Errorf("append observation: %w", execErr)
	}
	return nil
}

// ListObservationsBetween lists observations within a time window.
func (s *Store) ListObservationsBetween(ctx context.Context, from, to time.Time) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations between: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows)
}

// ListRecentObservations lists the newest observations first.
func (s *Store) ListRecentObservations(ctx context.Context, limit int) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentObservationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows)
}

func collectObservations(rows pgx.Rows) ([]PriceObservation, error) {
	observations := make([]PriceObservation, 0)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanObservation(rows pgx.Rows) (PriceObservation, error) {
	var (
		obs      PriceObservation
		baseStr  string
		markStr  string
		finalStr string
	)
	if err := rows.Scan(&obs.ID, &baseStr, &markStr, &finalStr, &obs.Source, &obs.CreatedAt); err != nil {
		return PriceObservation{}, err
	}

	var err error
	obs.BasePrice, err = decimal.NewFromString(baseStr)
	if err != nil {
		return PriceObservation{}, fmt.Errorf("parse base price: %w", err)
	}
	obs.Markup, err = decimal.NewFromString(markStr)
	if err != nil {
		return PriceObservation{}, fmt.Errorf("parse markup: %w", err)
	}
	obs.FinalPrice, err = decimal.NewFromString(finalStr)
	if err != nil {
		return PriceObservation{}, fmt.Errorf("parse final price: %w", err)
	}
	return obs, nil
}
