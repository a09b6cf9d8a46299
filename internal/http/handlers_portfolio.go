package http

import (
	"net/http"
	"strings"

	"immo/internal/core"
	"immo/internal/log"
	"immo/internal/store"
)

// Properties

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := s.portfolio.ListProperties(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolio.GetProperty(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var p core.Property
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	p.Name = sanitizeInput(p.Name)
	created, err := s.portfolio.CreateProperty(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	var p core.Property
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	p.Name = sanitizeInput(p.Name)
	updated, err := s.portfolio.UpdateProperty(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.DeleteProperty(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tenants

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.portfolio.ListTenants(r.Context(), strings.TrimSpace(r.URL.Query().Get("property")))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := s.portfolio.GetTenant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var t core.Tenant
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.portfolio.CreateTenant(r.Context(), t)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	var t core.Tenant
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.portfolio.UpdateTenant(r.Context(), r.PathValue("id"), t)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.DeleteTenant(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
	// Date is the move-out date for tenants and the due date for statements.
	Date string `json:"date,omitempty"`
}

func (s *Server) handleTenantStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	at, err := parseOptionalDate("date", req.Date)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	t, err := s.portfolio.TransitionTenant(r.Context(), r.PathValue("id"), core.TenantStatus(req.Status), at)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Expenses and categories

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r, 0)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	expenses, err := s.portfolio.ListExpenses(r.Context(), store.ExpenseFilter{
		PropertyID: strings.TrimSpace(r.URL.Query().Get("property")),
		Year:       year,
	})
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	e.Description = sanitizeInput(e.Description)
	e.Vendor = sanitizeInput(e.Vendor)
	created, err := s.portfolio.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.portfolio.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleSaveCategory(w http.ResponseWriter, r *http.Request) {
	var c core.ExpenseCategory
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	c.Name = sanitizeInput(c.Name)
	saved, err := s.portfolio.SaveCategory(r.Context(), r.PathValue("id"), c)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Maintenance

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.portfolio.ListTasks(r.Context(), strings.TrimSpace(r.URL.Query().Get("property")))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var m core.MaintenanceTask
	if err := decodeJSON(w, r, &m); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	m.Title = sanitizeInput(m.Title)
	created, err := s.portfolio.CreateTask(r.Context(), m)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var m core.MaintenanceTask
	if err := decodeJSON(w, r, &m); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	m.Title = sanitizeInput(m.Title)
	updated, err := s.portfolio.UpdateTask(r.Context(), r.PathValue("id"), m)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	m, err := s.portfolio.TransitionTask(r.Context(), r.PathValue("id"), core.TaskStatus(req.Status))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
