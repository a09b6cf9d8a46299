package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Recoverable bool   `json:"isRecoverable"`
	Amount      Money  `json:"amount"`
}

// YearOverview is the cost picture of one property for one year.
type YearOverview struct {
	PropertyID       string           `json:"propertyId"`
	Year             int              `json:"year"`
	Total            Money            `json:"total"`
	Recoverable      Money            `json:"recoverable"`
	NonRecoverable   Money            `json:"nonRecoverable"`
	ByCategory       []CategoryAmount `json:"byCategory"`
	RentIncome       Money            `json:"rentIncome"`
	AdvanceIncome    Money            `json:"advanceIncome"`
	MaintenanceCosts Money            `json:"maintenanceCosts"`
	// ProfitLoss is rent and advance income less all expenses and
	// maintenance costs of the year.
	ProfitLoss       Money            `json:"profitLoss"`
}

// PortfolioStats feeds the dashboard.
type PortfolioStats struct {
	Properties    int             `json:"properties"`
	Units         int             `json:"units"`
	ActiveTenants int             `json:"activeTenants"`
	OccupancyRate decimal.Decimal `json:"occupancyRate"` // percent
	MonthlyIncome Money           `json:"monthlyIncome"`
	OpenTasks     int             `json:"openTasks"`
	DraftBalances Money           `json:"draftBalances"`
}
