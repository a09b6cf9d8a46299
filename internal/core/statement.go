package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus is the lifecycle of a service charge statement.
type StatementStatus string

const (
	StatementDraft    StatementStatus = "draft"
	StatementSent     StatementStatus = "sent"
	StatementPaid     StatementStatus = "paid"
	StatementDisputed StatementStatus = "disputed"
)

var statementTransitions = map[StatementStatus][]StatementStatus{
	StatementDraft:    {StatementSent},
	StatementSent:     {StatementPaid, StatementDisputed},
	StatementDisputed: {StatementSent, StatementPaid},
}

// CanTransitionTo reports whether next is reachable from s.
func (s StatementStatus) CanTransitionTo(next StatementStatus) bool {
	for _, allowed := range statementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementDraft, StatementSent, StatementPaid, StatementDisputed:
		return true
	}
	return false
}

type (
	BillingPeriod struct {
		Year  int  `json:"year"`
		Start Date `json:"start"`
		End   Date `json:"end"`
	}

	// TenantPeriod is the part of the billing period the tenant is charged
	// for. Without proration it always equals the billing period.
	TenantPeriod struct {
		Start           Date `json:"start"`
		End             Date `json:"end"`
		DaysInPeriod    int  `json:"daysInPeriod"`
		TotalDaysInYear int  `json:"totalDaysInYear"`
	}

	// Calculation records the share behind a billing item.
	Calculation struct {
		TotalUnits  decimal.Decimal `json:"totalUnits"`
		TenantUnits decimal.Decimal `json:"tenantUnits"`
		Percentage  decimal.Decimal `json:"percentage"`
	}

	BillingItem struct {
		CategoryID   string          `json:"categoryId"`
		CategoryName string          `json:"categoryName"`
		TotalAmount  Money           `json:"totalAmount"`
		Key          DistributionKey `json:"distributionKey"`
		Calculation  Calculation     `json:"calculation"`
		TenantAmount Money           `json:"tenantAmount"`
	}

	// StatementSummary nets the tenant share against advance payments.
	// A positive balance means the tenant owes money.
	StatementSummary struct {
		TotalCosts      Money `json:"totalCosts"`
		TenantShare     Money `json:"tenantShare"`
		AdvancePayments Money `json:"advancePayments"`
		Balance         Money `json:"balance"`
	}

	BillingStatement struct {
		ID            string           `json:"id"`
		PropertyID    string           `json:"propertyId"`
		UnitID        string           `json:"unitId"`
		TenantID      string           `json:"tenantId"`
		BillingPeriod BillingPeriod    `json:"billingPeriod"`
		TenantPeriod  TenantPeriod     `json:"tenantPeriod"`
		Items         []BillingItem    `json:"items"`
		Summary       StatementSummary `json:"summary"`
		Status        StatementStatus  `json:"status"`
		CreatedAt     time.Time        `json:"createdAt"`
		SentAt        *time.Time       `json:"sentAt,omitempty"`
		DueDate       Date             `json:"dueDate,omitempty"`
		PaidAt        *time.Time       `json:"paidAt,omitempty"`
	}
)

// YearPeriod spans the whole calendar year.
func YearPeriod(year int) BillingPeriod {
	return BillingPeriod{
		Year:  year,
		Start: NewDate(year, 1, 1),
		End:   NewDate(year, 12, 31),
	}
}

// IsArrears reports whether the tenant has to pay back.
func (s StatementSummary) IsArrears() bool { return s.Balance.IsPositive() }

// IsCredit reports whether the tenant gets a refund.
func (s StatementSummary) IsCredit() bool { return s.Balance.IsNegative() }

// Transition moves the statement to next. Sending stamps SentAt and sets a
// due date when given; paying stamps PaidAt.
func (b *BillingStatement) Transition(next StatementStatus, at time.Time, due Date) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: statement %s -> %s", ErrInvalidTransition, b.Status, next)
	}
	switch next {
	case StatementSent:
		if b.SentAt == nil {
			t := at
			b.SentAt = &t
		}
		if !due.IsEmpty() {
			b.DueDate = due
		}
	case StatementPaid:
		t := at
		b.PaidAt = &t
	}
	b.Status = next
	return nil
}
