// Package commission credits referring employees for completed transactions.
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/quill/internal/domain"
)

// DefaultRate is the fixed referral commission rate (5%).
var DefaultRate = decimal.New(5, -2)

// Result describes one attribution attempt.
type Result struct {
	Entry domain.CommissionEntry
	// Created is false when the transaction already had a ledger entry.
	Created bool
}

// Attributor computes commission and writes the ledger entry and employee
// counters through the caller's unit of work.
type Attributor struct {
	rate decimal.Decimal
	now  func() time.Time
}

// NewAttributor creates an attributor. A zero or negative rate uses DefaultRate.
func NewAttributor(rate decimal.Decimal) *Attributor {
	if !rate.IsPositive() {
		rate = DefaultRate
	}
	return &Attributor{rate: rate, now: time.Now}
}

// Rate returns the configured commission rate.
func (a *Attributor) Rate() decimal.Decimal {
	return a.rate
}

// Compute returns the commission for an amount in minor units, rounded
// half-to-even to whole minor units.
func (a *Attributor) Compute(amountMinor int64) int64 {
	return decimal.NewFromInt(amountMinor).Mul(a.rate).RoundBank(0).IntPart()
}

// Points returns the loyalty points for a transaction: one per whole major unit.
func Points(tx domain.Transaction) int64 {
	return tx.Amount().Floor().IntPart()
}

// Attribute records the commission for tx against employeeID. A second call
// for the same transaction is a no-op and leaves the employee counters alone.
func (a *Attributor) Attribute(ctx context.Context, uow domain.UnitOfWork, tx domain.Transaction, employeeID string) (Result, error) {
	if employeeID == "" {
		return Result{}, fmt.Errorf("attribute commission: %w", domain.ErrEmployeeNotFound)
	}

	entry := domain.CommissionEntry{
		ID:              uuid.New(),
		EmployeeID:      employeeID,
		SubscriberID:    tx.SubscriberID,
		TransactionID:   tx.ID,
		CommissionMinor: a.Compute(tx.AmountMinor),
		Currency:        tx.Currency,
		CreatedAt:       a.now().UTC(),
	}

	created, err := uow.InsertCommissionEntry(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("insert commission entry: %w", err)
	}
	if !created {
		return Result{Entry: entry, Created: false}, nil
	}

	err = uow.IncrementEmployeeMetrics(ctx, domain.EmployeeMetricsDelta{
		EmployeeID:   employeeID,
		Uses:         1,
		RevenueMinor: entry.CommissionMinor,
		Points:       Points(tx),
	})
	if err != nil {
		return Result{}, fmt.Errorf("increment employee metrics: %w", err)
	}

	return Result{Entry: entry, Created: true}, nil
}
