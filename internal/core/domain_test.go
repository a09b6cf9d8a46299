package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 9))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-03-09"` {
		t.Fatalf("got %s", b)
	}

	for _, in := range []string{`"2024-03-09"`, `"2024-03-09T10:00:00Z"`} {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if d.String() != "2024-03-09" {
			t.Fatalf("unmarshal %s: got %s", in, d)
		}
	}

	var empty Date
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil || !empty.IsEmpty() {
		t.Fatalf("expected empty date, got %v (%v)", empty, err)
	}
}

func TestDaysInYear(t *testing.T) {
	if got := DaysInYear(2024); got != 366 {
		t.Fatalf("2024: got %d", got)
	}
	if got := DaysInYear(2023); got != 365 {
		t.Fatalf("2023: got %d", got)
	}
}

func TestPropertyValidate(t *testing.T) {
	unit := Unit{ID: "u1", Name: "EG", Area: decimal.NewFromInt(75)}

	cases := []struct {
		name string
		p    Property
		err  error
	}{
		{"multi-family with units", Property{Name: "MFH", Kind: KindMultiFamily, Units: []Unit{unit}}, nil},
		{"multi-family without units", Property{Name: "MFH", Kind: KindMultiFamily}, nil},
		{"house without units", Property{Name: "Haus", Kind: KindHouse}, nil},
		{"house with units", Property{Name: "Haus", Kind: KindHouse, Units: []Unit{unit}}, ErrUnitsOnSingleUnit},
		{"apartment with units", Property{Name: "Whg", Kind: KindApartment, Units: []Unit{unit}}, ErrUnitsOnSingleUnit},
		{"missing name", Property{Kind: KindHouse}, ErrEmptyName},
		{"bad kind", Property{Name: "x", Kind: "castle"}, ErrInvalidKind},
		{"duplicate unit", Property{Name: "MFH", Kind: KindMultiFamily, Units: []Unit{unit, unit}}, ErrDuplicateUnit},
		{"zero area", Property{Name: "MFH", Kind: KindMultiFamily, Units: []Unit{{ID: "u", Name: "u"}}}, ErrInvalidArea},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.err == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %T", err)
			}
		})
	}
}

func TestPropertyUnitCount(t *testing.T) {
	if n := (Property{Kind: KindHouse}).UnitCount(); n != 1 {
		t.Fatalf("house: got %d", n)
	}
	mfh := Property{Kind: KindMultiFamily, Units: []Unit{{ID: "a"}, {ID: "b"}}}
	if n := mfh.UnitCount(); n != 2 {
		t.Fatalf("mfh: got %d", n)
	}
	if _, ok := mfh.FindUnit("b"); !ok {
		t.Fatalf("expected to find unit b")
	}
	if _, ok := mfh.FindUnit("c"); ok {
		t.Fatalf("unexpected unit c")
	}
}

func TestTenantTransition(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		from, to TenantStatus
		ok       bool
	}{
		{TenantActive, TenantNoticeGiven, true},
		{TenantActive, TenantMovedOut, true},
		{TenantNoticeGiven, TenantMovedOut, true},
		{TenantNoticeGiven, TenantActive, false},
		{TenantMovedOut, TenantActive, false},
		{TenantActive, TenantActive, false},
	}
	for _, tc := range cases {
		tn := Tenant{Status: tc.from}
		err := tn.Transition(tc.to, now)
		if tc.ok != (err == nil) {
			t.Fatalf("%s -> %s: ok=%v err=%v", tc.from, tc.to, tc.ok, err)
		}
		if tc.ok && tc.to == TenantMovedOut && tn.MoveOutDate.String() != "2024-06-30" {
			t.Fatalf("move out date not stamped: %v", tn.MoveOutDate)
		}
	}
}

func TestTenantHeadcount(t *testing.T) {
	tn := Tenant{Occupants: []Occupant{{Name: "a"}, {Name: "b"}}}
	if tn.Headcount() != 3 {
		t.Fatalf("got %d", tn.Headcount())
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{PropertyID: "p", CategoryID: "c", Period: ExpensePeriod{Year: 2024}, Amount: MoneyFromInt(10)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	zero := good
	zero.Amount = Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be valid, got %v", err)
	}

	bads := []Expense{
		{CategoryID: "c", Period: ExpensePeriod{Year: 2024}},
		{PropertyID: "p", Period: ExpensePeriod{Year: 2024}},
		{PropertyID: "p", CategoryID: "c"},
		{PropertyID: "p", CategoryID: "c", Period: ExpensePeriod{Year: 2024}, Amount: MoneyFromInt(-1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestStatementTransition(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	s := BillingStatement{Status: StatementDraft}

	if err := s.Transition(StatementPaid, now, Date{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("draft -> paid should fail, got %v", err)
	}
	if err := s.Transition(StatementSent, now, NewDate(2025, 3, 1)); err != nil {
		t.Fatalf("draft -> sent: %v", err)
	}
	if s.SentAt == nil || s.DueDate.String() != "2025-03-01" {
		t.Fatalf("sent not stamped: %+v", s)
	}
	if err := s.Transition(StatementDisputed, now, Date{}); err != nil {
		t.Fatalf("sent -> disputed: %v", err)
	}
	if err := s.Transition(StatementPaid, now, Date{}); err != nil {
		t.Fatalf("disputed -> paid: %v", err)
	}
	if s.PaidAt == nil {
		t.Fatalf("paid not stamped")
	}
	if err := s.Transition(StatementDraft, now, Date{}); err == nil {
		t.Fatalf("paid is terminal")
	}
}

func TestMaintenanceTask(t *testing.T) {
	m := MaintenanceTask{
		PropertyID: "p",
		Title:      "Heizung warten",
		Priority:   PriorityMedium,
		Status:     TaskPlanned,
		Costs: []MaintenanceCost{
			{Description: "Material", Amount: MustParseAmount("120.50")},
			{Description: "Arbeit", Amount: MustParseAmount("80")},
		},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := m.ActualCost().String(); got != "200.50" {
		t.Fatalf("actual cost: got %s", got)
	}
	if err := m.Transition(TaskCompleted, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if m.CompletedDate.String() != "2024-05-02" {
		t.Fatalf("completed date: %v", m.CompletedDate)
	}
	if err := m.Transition(TaskInProgress, time.Now()); err == nil {
		t.Fatalf("completed is terminal")
	}
}
