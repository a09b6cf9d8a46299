package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PropertyKind is the variant of a property. Only multi-family buildings
// are split into units.
type PropertyKind string

const (
	KindHouse       PropertyKind = "house"
	KindApartment   PropertyKind = "apartment"
	KindMultiFamily PropertyKind = "multi-family"
)

// IsSingleUnit reports whether the property is rented out as a whole.
func (k PropertyKind) IsSingleUnit() bool {
	return k == KindHouse || k == KindApartment
}

func (k PropertyKind) IsValid() bool {
	switch k {
	case KindHouse, KindApartment, KindMultiFamily:
		return true
	}
	return false
}

// DistributionKey selects how a category's total is split among units.
type DistributionKey string

const (
	KeyArea        DistributionKey = "area"
	KeyUnits       DistributionKey = "units"
	KeyPersons     DistributionKey = "persons"
	KeyConsumption DistributionKey = "consumption"
	KeyFixed       DistributionKey = "fixed"
)

func (k DistributionKey) IsValid() bool {
	switch k {
	case KeyArea, KeyUnits, KeyPersons, KeyConsumption, KeyFixed:
		return true
	}
	return false
}

// CategoryType is informational only; the engine never branches on it.
type CategoryType string

const (
	CategoryHeating     CategoryType = "heating"
	CategoryWater       CategoryType = "water"
	CategoryWaste       CategoryType = "waste"
	CategoryCleaning    CategoryType = "cleaning"
	CategoryGarden      CategoryType = "garden"
	CategoryInsurance   CategoryType = "insurance"
	CategoryPropertyTax CategoryType = "property-tax"
	CategoryManagement  CategoryType = "management"
	CategoryElevator    CategoryType = "elevator"
	CategoryLighting    CategoryType = "lighting"
	CategoryOther       CategoryType = "other"
)

// TenantStatus moves one way: active, notice-given, moved-out.
type TenantStatus string

const (
	TenantActive      TenantStatus = "active"
	TenantNoticeGiven TenantStatus = "notice-given"
	TenantMovedOut    TenantStatus = "moved-out"
)

func (s TenantStatus) rank() int {
	switch s {
	case TenantActive:
		return 0
	case TenantNoticeGiven:
		return 1
	case TenantMovedOut:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether the status may change to next.
func (s TenantStatus) CanTransitionTo(next TenantStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to >= 0 && to > from
}

type PaymentMethod string

const (
	PaymentTransfer    PaymentMethod = "transfer"
	PaymentDirectDebit PaymentMethod = "direct-debit"
)

type (
	Date struct {
		time.Time
	}

	Address struct {
		Street      string `json:"street"`
		HouseNumber string `json:"houseNumber"`
		PostalCode  string `json:"postalCode"`
		City        string `json:"city"`
		Country     string `json:"country"`
	}

	BuildingInfo struct {
		YearBuilt      int             `json:"yearBuilt,omitempty"`
		LastRenovation int             `json:"lastRenovation,omitempty"`
		TotalArea      decimal.Decimal `json:"totalArea"`
		PlotSize       decimal.Decimal `json:"plotSize"`
		Floors         int             `json:"floors,omitempty"`
		HeatingType    string          `json:"heatingType,omitempty"`
		HeatingSystem  string          `json:"heatingSystem,omitempty"`
		EnergyClass    string          `json:"energyClass,omitempty"`
	}

	AnnualCosts struct {
		PropertyTax        Money `json:"propertyTax"`
		BuildingInsurance  Money `json:"buildingInsurance"`
		LiabilityInsurance Money `json:"liabilityInsurance"`
		Management         Money `json:"management"`
	}

	Property struct {
		ID          string       `json:"id"`
		Kind        PropertyKind `json:"kind"`
		Name        string       `json:"name"`
		Address     Address      `json:"address"`
		Building    BuildingInfo `json:"building"`
		Units       []Unit       `json:"units,omitempty"`
		AnnualCosts AnnualCosts  `json:"annualCosts"`
		Notes       string       `json:"notes,omitempty"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	Unit struct {
		ID              string          `json:"id"`
		PropertyID      string          `json:"propertyId"`
		Name            string          `json:"name"`
		Floor           int             `json:"floor"`
		Area            decimal.Decimal `json:"area"`
		Rooms           decimal.Decimal `json:"rooms"`
		HasBalcony      bool            `json:"hasBalcony"`
		HasGarden       bool            `json:"hasGarden"`
		ParkingSpaces   int             `json:"parkingSpaces"`
		CurrentTenantID string          `json:"currentTenantId,omitempty"`
		BaseRent        Money           `json:"baseRent"`
		AdvancePayment  Money           `json:"advancePayment"`
	}

	PersonalInfo struct {
		Salutation string `json:"salutation,omitempty"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		BirthDate  Date   `json:"birthDate,omitempty"`
		Email      string `json:"email,omitempty"`
		Phone      string `json:"phone,omitempty"`
		Mobile     string `json:"mobile,omitempty"`
	}

	Occupant struct {
		Name         string `json:"name"`
		BirthDate    Date   `json:"birthDate,omitempty"`
		Relationship string `json:"relationship,omitempty"`
	}

	Contract struct {
		StartDate      Date          `json:"startDate"`
		EndDate        Date          `json:"endDate,omitempty"`
		BaseRent       Money         `json:"baseRent"`
		AdvancePayment Money         `json:"advancePayment"` // monthly
		Deposit        Money         `json:"deposit"`
		DepositPaid    bool          `json:"depositPaid"`
		RentDueDay     int           `json:"rentDueDay"`
		PaymentMethod  PaymentMethod `json:"paymentMethod"`
	}

	Tenant struct {
		ID          string       `json:"id"`
		PropertyID  string       `json:"propertyId"`
		UnitID      string       `json:"unitId"`
		Personal    PersonalInfo `json:"personal"`
		Occupants   []Occupant   `json:"occupants,omitempty"`
		Contract    Contract     `json:"contract"`
		Status      TenantStatus `json:"status"`
		MoveOutDate Date         `json:"moveOutDate,omitempty"`
		Notes       string       `json:"notes,omitempty"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	ExpenseCategory struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Type        CategoryType    `json:"type"`
		Key         DistributionKey `json:"distributionKey"`
		Recoverable bool            `json:"isRecoverable"`
		Description string          `json:"description,omitempty"`
	}

	ExpensePeriod struct {
		Year  int  `json:"year"`
		Start Date `json:"start,omitempty"`
		End   Date `json:"end,omitempty"`
	}

	Invoice struct {
		Number      string `json:"number,omitempty"`
		Date        Date   `json:"date,omitempty"`
		PaymentDate Date   `json:"paymentDate,omitempty"`
	}

	Expense struct {
		ID          string        `json:"id"`
		PropertyID  string        `json:"propertyId"`
		CategoryID  string        `json:"categoryId"`
		Period      ExpensePeriod `json:"period"`
		Amount      Money         `json:"amount"`
		Vendor      string        `json:"vendor,omitempty"`
		Description string        `json:"description,omitempty"`
		Invoice     Invoice       `json:"invoice"`
		CreatedAt   time.Time     `json:"createdAt"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidArea        = errors.New("unit area must be positive")
	ErrInvalidYear        = errors.New("invalid year")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyID            = errors.New("empty id")
	ErrInvalidKind        = errors.New("invalid property kind")
	ErrUnitsOnSingleUnit  = errors.New("single-unit property cannot have units")
	ErrDuplicateUnit      = errors.New("duplicate unit id")
	ErrInvalidKey         = errors.New("invalid distribution key")
	ErrInvalidRentDueDay  = errors.New("rent due day must be between 1 and 31")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnitOccupied       = errors.New("unit already has an active tenant")
	ErrMissingPropertyRef = errors.New("missing property reference")
	ErrMissingCategoryRef = errors.New("missing category reference")
)

// ValidationError marks errors caused by invalid input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err came from domain validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well as plain dates.
	if len(s) > len(dateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse date %q: %w", s, err)
		}
		*d = NewDate(t.Year(), int(t.Month()), t.Day())
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysInYear returns the number of calendar days in year.
func DaysInYear(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// Validate checks the property variant rules.
func (p Property) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if !p.Kind.IsValid() {
		return invalid("kind", fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind))
	}
	if p.Kind.IsSingleUnit() && len(p.Units) > 0 {
		return invalid("units", ErrUnitsOnSingleUnit)
	}
	seen := make(map[string]struct{}, len(p.Units))
	for i, u := range p.Units {
		if err := u.Validate(); err != nil {
			return invalid(fmt.Sprintf("units[%d]", i), err)
		}
		if _, dup := seen[u.ID]; dup {
			return invalid(fmt.Sprintf("units[%d]", i), fmt.Errorf("%w: %s", ErrDuplicateUnit, u.ID))
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

// FindUnit returns the unit with the given id.
func (p Property) FindUnit(id string) (Unit, bool) {
	for _, u := range p.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// UnitCount counts a single-unit property as one rentable unit.
func (p Property) UnitCount() int {
	if p.Kind.IsSingleUnit() {
		return 1
	}
	return len(p.Units)
}

func (u Unit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if !u.Area.IsPositive() {
		return ErrInvalidArea
	}
	if err := u.BaseRent.Validate(); err != nil {
		return fmt.Errorf("base rent: %w", err)
	}
	return u.AdvancePayment.Validate()
}

// Headcount is the main tenant plus additional occupants.
func (t Tenant) Headcount() int {
	return 1 + len(t.Occupants)
}

// FullName joins first and last name.
func (t Tenant) FullName() string {
	return strings.TrimSpace(t.Personal.FirstName + " " + t.Personal.LastName)
}

func (t Tenant) IsActive() bool {
	return t.Status == TenantActive
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(t.PropertyID) == "" {
		return invalid("propertyId", ErrMissingPropertyRef)
	}
	if strings.TrimSpace(t.Personal.LastName) == "" {
		return invalid("personal.lastName", ErrEmptyName)
	}
	if t.Status.rank() < 0 {
		return invalid("status", fmt.Errorf("unknown tenant status %q", t.Status))
	}
	return t.Contract.Validate()
}

// Transition moves the tenant to next, recording the move-out date when
// the tenant leaves.
func (t *Tenant) Transition(next TenantStatus, at time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: tenant %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	if next == TenantMovedOut && t.MoveOutDate.IsEmpty() {
		t.MoveOutDate = NewDate(at.Year(), int(at.Month()), at.Day())
	}
	t.UpdatedAt = at
	return nil
}

func (c Contract) Validate() error {
	if c.RentDueDay != 0 && (c.RentDueDay < 1 || c.RentDueDay > 31) {
		return invalid("contract.rentDueDay", ErrInvalidRentDueDay)
	}
	for field, m := range map[string]Money{
		"contract.baseRent":       c.BaseRent,
		"contract.advancePayment": c.AdvancePayment,
		"contract.deposit":        c.Deposit,
	} {
		if err := m.Validate(); err != nil {
			return invalid(field, err)
		}
	}
	if !c.EndDate.IsEmpty() && !c.StartDate.IsEmpty() && c.EndDate.Before(c.StartDate.Time) {
		return invalid("contract.endDate", errors.New("end date before start date"))
	}
	return nil
}

func (c ExpenseCategory) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id", ErrEmptyID)
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if !c.Key.IsValid() {
		return invalid("distributionKey", fmt.Errorf("%w: %q", ErrInvalidKey, c.Key))
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.PropertyID) == "" {
		return invalid("propertyId", ErrMissingPropertyRef)
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return invalid("categoryId", ErrMissingCategoryRef)
	}
	if e.Period.Year < 1900 || e.Period.Year > 9999 {
		return invalid("period.year", ErrInvalidYear)
	}
	if err := e.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if len(e.Description) > 500 {
		return invalid("description", errors.New("description too long (max 500 characters)"))
	}
	return nil
}

// DefaultCategories is the catalog a fresh installation starts with.
func DefaultCategories() []ExpenseCategory {
	return []ExpenseCategory{
		{ID: "cat-heating", Name: "Heizkosten", Type: CategoryHeating, Key: KeyConsumption, Recoverable: true},
		{ID: "cat-water", Name: "Wasser/Abwasser", Type: CategoryWater, Key: KeyConsumption, Recoverable: true},
		{ID: "cat-waste", Name: "Müllabfuhr", Type: CategoryWaste, Key: KeyPersons, Recoverable: true},
		{ID: "cat-cleaning", Name: "Hausmeister & Reinigung", Type: CategoryCleaning, Key: KeyArea, Recoverable: true},
		{ID: "cat-insurance", Name: "Gebäudeversicherung", Type: CategoryInsurance, Key: KeyArea, Recoverable: true},
		{ID: "cat-tax", Name: "Grundsteuer", Type: CategoryPropertyTax, Key: KeyArea, Recoverable: true},
		{ID: "cat-garden", Name: "Gartenpflege", Type: CategoryGarden, Key: KeyArea, Recoverable: true},
		{ID: "cat-lighting", Name: "Allgemeinstrom", Type: CategoryLighting, Key: KeyUnits, Recoverable: true},
		{ID: "cat-management", Name: "Hausverwaltung", Type: CategoryManagement, Key: KeyUnits, Recoverable: false},
	}
}
