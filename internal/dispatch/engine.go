// Package dispatch selects a customer-service account for each incoming
// support request, honouring per-operator capacity ceilings.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"otcdesk/internal/cache"
	"otcdesk/internal/metrics"
	"otcdesk/internal/storage"
)

// ErrNoAvailableAccount indicates the candidate set is empty. Callers decide
// whether to queue or surface the exhaustion; the engine never retries.
var ErrNoAvailableAccount = errors.New("dispatch: no available account")

// Strategy enumerates the selection policies.
type Strategy string

const (
	RoundRobin Strategy = "round_robin"
	LeastBusy  Strategy = "least_busy"
	Weighted   Strategy = "weighted"
	Smart      Strategy = "smart"
)

// ParseStrategy validates a strategy name, defaulting empty input to Smart.
func ParseStrategy(raw string) (Strategy, error) {
	if raw == "" {
		return Smart, nil
	}
	switch Strategy(raw) {
	case RoundRobin, LeastBusy, Weighted, Smart:
		return Strategy(raw), nil
	}
	return "", fmt.Errorf("unknown dispatch strategy %q", raw)
}

// Options tune engine behaviour.
type Options struct {
	// SmartCutoff is the utilization ratio above which smart excludes a
	// candidate from weighted selection.
	SmartCutoff float64
	// StickyTTL keeps a user routed to the same operator on repeat
	// requests without consuming extra capacity. Zero disables stickiness.
	StickyTTL time.Duration
	// Rand overrides the randomness source for weighted selection.
	Rand *rand.Rand
	// Metrics receives assignment outcome counters. May be nil.
	Metrics *metrics.Metrics
}

// Engine performs capacity-aware operator assignment. Counter mutation is
// delegated to the store's conditional increment so concurrent requests can
// never overcommit an account.
type Engine struct {
	accounts storage.AccountStore
	opts     Options
	logger   zerolog.Logger

	mu     sync.Mutex
	cursor int
	rng    *rand.Rand
	sticky *cache.TTL[string]
}

// NewEngine constructs a dispatch engine.
func NewEngine(accounts storage.AccountStore, opts Options, logger zerolog.Logger) *Engine {
	if opts.SmartCutoff <= 0 || opts.SmartCutoff > 1 {
		opts.SmartCutoff = 0.8
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var sticky *cache.TTL[string]
	if opts.StickyTTL > 0 {
		sticky = cache.New[string](opts.StickyTTL)
	}

	return &Engine{
		accounts: accounts,
		opts:     opts,
		logger:   logger.With().Str("component", "dispatch").Logger(),
		rng:      rng,
		sticky:   sticky,
	}
}

// Assign picks one operator for the requesting user. A user who already
// holds a live assignment within the sticky window is routed back to the
// same operator without consuming further capacity.
func (e *Engine) Assign(ctx context.Context, userID int64, strategy Strategy) (string, error) {
	if e.sticky != nil {
		if username, ok := e.sticky.Get(stickyKey(userID)); ok {
			e.logger.Debug().Int64("user_id", userID).Str("username", username).Msg("sticky reassignment")
			e.opts.Metrics.IncAssignment(string(strategy), "sticky")
			return username, nil
		}
	}

	candidates, err := e.accounts.ListSelectableAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("list candidates: %w", err)
	}

	// A candidate can lose its last slot between listing and the
	// conditional increment; drop it and pick again from the remainder.
	for len(candidates) > 0 {
		chosen, idx := e.pick(candidates, strategy)

		record := storage.AssignmentRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			AccountID: chosen.AccountID,
			Username:  chosen.Username,
			Method:    string(strategy),
		}
		ok, err := e.accounts.TryAssignAccount(ctx, chosen.AccountID, record)
		if err != nil {
			return "", fmt.Errorf("assign account: %w", err)
		}
		if ok {
			if e.sticky != nil {
				e.sticky.Put(stickyKey(userID), chosen.Username, e.opts.StickyTTL)
			}
			e.logger.Info().
				Int64("user_id", userID).
				Int64("account_id", chosen.AccountID).
				Str("strategy", string(strategy)).
				Msg("operator assigned")
			e.opts.Metrics.IncAssignment(string(strategy), "ok")
			return chosen.Username, nil
		}

		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}

	e.opts.Metrics.IncAssignment(string(strategy), "exhausted")
	return "", ErrNoAvailableAccount
}

// Release frees one assignment slot on the operator and drops the user's
// sticky route.
func (e *Engine) Release(ctx context.Context, userID, accountID int64) error {
	if err := e.accounts.ReleaseAccount(ctx, accountID); err != nil {
		return fmt.Errorf("release account: %w", err)
	}
	if e.sticky != nil {
		e.sticky.Invalidate(stickyKey(userID))
	}
	return nil
}

func (e *Engine) pick(candidates []storage.ServiceAccount, strategy Strategy) (storage.ServiceAccount, int) {
	switch strategy {
	case RoundRobin:
		return e.pickRoundRobin(candidates)
	case LeastBusy:
		return pickLeastBusy(candidates)
	case Weighted:
		return e.pickWeighted(candidates)
	case Smart:
		return e.pickSmart(candidates)
	}
	return e.pickSmart(candidates)
}

func (e *Engine) pickRoundRobin(candidates []storage.ServiceAccount) (storage.ServiceAccount, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.cursor % len(candidates)
	e.cursor++
	return candidates[idx], idx
}

// pickLeastBusy selects the lowest utilization ratio; ties break toward the
// smaller account id, which candidates are already ordered by.
func pickLeastBusy(candidates []storage.ServiceAccount) (storage.ServiceAccount, int) {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Utilization() < candidates[best].Utilization() {
			best = i
		}
	}
	return candidates[best], best
}

func (e *Engine) pickWeighted(candidates []storage.ServiceAccount) (storage.ServiceAccount, int) {
	total := 0
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return pickLeastBusy(candidates)
	}

	e.mu.Lock()
	n := e.rng.Intn(total)
	e.mu.Unlock()

	for i, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		if n < c.Weight {
			return c, i
		}
		n -= c.Weight
	}
	return candidates[len(candidates)-1], len(candidates) - 1
}

// pickSmart applies weighted selection among candidates below the
// utilization cutoff, falling back to least-busy over the full set when
// everyone is running hot.
func (e *Engine) pickSmart(candidates []storage.ServiceAccount) (storage.ServiceAccount, int) {
	cool := make([]storage.ServiceAccount, 0, len(candidates))
	indexes := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if c.Utilization() < e.opts.SmartCutoff {
			cool = append(cool, c)
			indexes = append(indexes, i)
		}
	}
	if len(cool) == 0 {
		return pickLeastBusy(candidates)
	}

	chosen, coolIdx := e.pickWeighted(cool)
	return chosen, indexes[coolIdx]
}

func stickyKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
