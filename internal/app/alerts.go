package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"otcdesk/internal/storage"
)

// AlertAddOptions describe a new threshold watch.
type AlertAddOptions struct {
	UserID    int64
	Operator  string
	Threshold string
}

// AddAlertRule registers a price threshold watch for a user.
func (a *App) AddAlertRule(ctx context.Context, opts AlertAddOptions) error {
	op, err := storage.ParseCompareOp(opts.Operator)
	if err != nil {
		return err
	}
	threshold, err := decimal.NewFromString(opts.Threshold)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", opts.Threshold, err)
	}
	if !threshold.IsPositive() {
		return fmt.Errorf("threshold must be positive, got %s", threshold)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rule, err := store.CreateAlertRule(ctx, storage.AlertRule{
		UserID:    opts.UserID,
		AlertType: "price",
		Operator:  op,
		Threshold: threshold,
		IsActive:  true,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "created rule %d: price %s %s\n", rule.ID, rule.Operator, rule.Threshold)
	return nil
}

// ListAlertRules prints a user's rules, or every active rule when userID is
// zero.
func (a *App) ListAlertRules(ctx context.Context, userID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var rules []storage.AlertRule
	if userID != 0 {
		rules, err = store.ListAlertRulesByUser(ctx, userID)
	} else {
		rules, err = store.ListActiveAlertRules(ctx)
	}
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(os.Stdout, "no alert rules found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tUser\tCondition\tActive\tNotified\tLast Notified (UTC)")
	for _, rule := range rules {
		fmt.Fprintf(
			writer,
			"%d\t%d\tprice %s %s\t%t\t%d\t%s\n",
			rule.ID,
			rule.UserID,
			rule.Operator,
			rule.Threshold,
			rule.IsActive,
			rule.NotificationCount,
			formatTimePtr(rule.LastNotifiedAt),
		)
	}
	return writer.Flush()
}

// RemoveAlertRule deactivates one of the user's rules.
func (a *App) RemoveAlertRule(ctx context.Context, ruleID, userID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeactivateAlertRule(ctx, ruleID, userID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "deactivated rule %d\n", ruleID)
	return nil
}
