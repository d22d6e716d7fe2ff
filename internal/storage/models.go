package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus enumerates the transaction lifecycle states.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxPaid      TxStatus = "paid"
	TxConfirmed TxStatus = "confirmed"
	TxCancelled TxStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxCancelled
}

// ParseTxStatus validates a stored status string.
func ParseTxStatus(raw string) (TxStatus, error) {
	switch TxStatus(raw) {
	case TxPending, TxPaid, TxConfirmed, TxCancelled:
		return TxStatus(raw), nil
	}
	return "", fmt.Errorf("unknown transaction status %q", raw)
}

// AccountStatus enumerates service-account availability states.
type AccountStatus string

const (
	AccountAvailable AccountStatus = "available"
	AccountBusy      AccountStatus = "busy"
	AccountOffline   AccountStatus = "offline"
	AccountDisabled  AccountStatus = "disabled"
)

// Selectable reports whether an account in this status may receive work.
func (s AccountStatus) Selectable() bool {
	return s == AccountAvailable || s == AccountBusy
}

// CompareOp enumerates alert-rule comparison operators.
type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
)

// ParseCompareOp validates a comparison operator string.
func ParseCompareOp(raw string) (CompareOp, error) {
	switch CompareOp(raw) {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return CompareOp(raw), nil
	}
	return "", fmt.Errorf("unknown comparison operator %q", raw)
}

// Matches evaluates price against threshold under the operator.
func (op CompareOp) Matches(price, threshold decimal.Decimal) bool {
	switch op {
	case OpGreater:
		return price.GreaterThan(threshold)
	case OpGreaterEqual:
		return price.GreaterThanOrEqual(threshold)
	case OpLess:
		return price.LessThan(threshold)
	case OpLessEqual:
		return price.LessThanOrEqual(threshold)
	}
	return false
}

// GroupConfig carries a group's markup override and settlement address.
// A markup of exactly zero means "no override"; resolution falls back to
// the global default in that case.
type GroupConfig struct {
	GroupID     int64
	Markup      decimal.Decimal
	USDTAddress string
	UpdatedAt   time.Time
}

// GlobalSettings is the singleton fallback configuration.
type GlobalSettings struct {
	Markup      decimal.Decimal
	USDTAddress string
	Strategy    string
	UpdatedAt   time.Time
}

// PriceObservation is an append-only record of one successful resolution.
type PriceObservation struct {
	ID         int64
	BasePrice  decimal.Decimal
	Markup     decimal.Decimal
	FinalPrice decimal.Decimal
	Source     string
	CreatedAt  time.Time
}

// Transaction is a settlement materialised as a persisted record.
type Transaction struct {
	TransactionID string
	GroupID       *int64
	UserID        int64
	CNYAmount     decimal.Decimal
	USDTAmount    decimal.Decimal
	ExchangeRate  decimal.Decimal
	Markup        decimal.Decimal
	USDTAddress   *string
	Status        TxStatus
	PaymentHash   *string
	CreatedAt     time.Time
	PaidAt        *time.Time
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
}

// TxFilter narrows transaction listings.
type TxFilter struct {
	GroupID   *int64
	UserID    *int64
	Status    *TxStatus
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Limit     int
	Offset    int
}

// ServiceAccount is one human operator in the dispatch pool.
type ServiceAccount struct {
	AccountID       int64
	Username        string
	DisplayName     string
	Weight          int
	MaxConcurrent   int
	CurrentAssigned int
	Status          AccountStatus
}

// Utilization returns current_assigned / max_concurrent.
func (a ServiceAccount) Utilization() float64 {
	if a.MaxConcurrent <= 0 {
		return 1
	}
	return float64(a.CurrentAssigned) / float64(a.MaxConcurrent)
}

// AlertRule is a user-owned threshold watch on the global price.
type AlertRule struct {
	ID                int64
	UserID            int64
	AlertType         string
	Operator          CompareOp
	Threshold         decimal.Decimal
	IsActive          bool
	NotificationCount int
	LastNotifiedAt    *time.Time
	CreatedAt         time.Time
}

// AuditEntry records one successful transaction transition.
type AuditEntry struct {
	ID            string
	TransactionID string
	ActorID       int64
	Operation     string
	FromStatus    TxStatus
	ToStatus      TxStatus
	Description   string
	CreatedAt     time.Time
}

// AssignmentRecord captures one dispatch decision for auditing.
type AssignmentRecord struct {
	ID        string
	UserID    int64
	AccountID int64
	Username  string
	Method    string
	CreatedAt time.Time
}
