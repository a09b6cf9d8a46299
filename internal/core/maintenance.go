package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type MaintenanceCategory string

const (
	MaintenanceRepair     MaintenanceCategory = "repair"
	MaintenanceRoutine    MaintenanceCategory = "maintenance"
	MaintenanceRenovation MaintenanceCategory = "renovation"
	MaintenanceEmergency  MaintenanceCategory = "emergency"
	MaintenanceInspection MaintenanceCategory = "inspection"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type TaskStatus string

const (
	TaskPlanned    TaskStatus = "planned"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPlanned:    {TaskInProgress, TaskCompleted, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskCancelled},
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type (
	MaintenanceCost struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Type        string `json:"type"` // material, labor, other
	}

	MaintenanceTask struct {
		ID            string              `json:"id"`
		PropertyID    string              `json:"propertyId"`
		UnitID        string              `json:"unitId,omitempty"`
		Title         string              `json:"title"`
		Description   string              `json:"description,omitempty"`
		Category      MaintenanceCategory `json:"category"`
		Priority      Priority            `json:"priority"`
		Status        TaskStatus          `json:"status"`
		ReportedDate  Date                `json:"reportedDate"`
		PlannedDate   Date                `json:"plannedDate,omitempty"`
		CompletedDate Date                `json:"completedDate,omitempty"`
		EstimatedCost Money               `json:"estimatedCost"`
		Costs         []MaintenanceCost   `json:"costs,omitempty"`
		Contractor    string              `json:"contractor,omitempty"`
		Recoverable   bool                `json:"isRecoverable"`
		TaxDeductible bool                `json:"isTaxDeductible"`
		Notes         string              `json:"notes,omitempty"`
		CreatedAt     time.Time           `json:"createdAt"`
		UpdatedAt     time.Time           `json:"updatedAt"`
	}
)

// ActualCost sums the booked cost lines.
func (m MaintenanceTask) ActualCost() Money {
	total := Zero
	for _, c := range m.Costs {
		total = total.Add(c.Amount)
	}
	return total
}

func (m MaintenanceTask) Validate() error {
	if strings.TrimSpace(m.PropertyID) == "" {
		return invalid("propertyId", ErrMissingPropertyRef)
	}
	if strings.TrimSpace(m.Title) == "" {
		return invalid("title", errors.New("empty title"))
	}
	switch m.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
	default:
		return invalid("priority", fmt.Errorf("unknown priority %q", m.Priority))
	}
	if err := m.EstimatedCost.Validate(); err != nil {
		return invalid("estimatedCost", err)
	}
	for i, c := range m.Costs {
		if err := c.Amount.Validate(); err != nil {
			return invalid(fmt.Sprintf("costs[%d]", i), err)
		}
	}
	return nil
}

// Transition moves the task to next and stamps the completion date.
func (m *MaintenanceTask) Transition(next TaskStatus, at time.Time) error {
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: task %s -> %s", ErrInvalidTransition, m.Status, next)
	}
	m.Status = next
	if next == TaskCompleted && m.CompletedDate.IsEmpty() {
		m.CompletedDate = NewDate(at.Year(), int(at.Month()), at.Day())
	}
	m.UpdatedAt = at
	return nil
}
