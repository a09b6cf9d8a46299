package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"immo/internal/billing"
	"immo/internal/core"
	"immo/internal/export"
	"immo/internal/log"
	"immo/internal/store"
	"immo/internal/workflow"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type billingRequest struct {
	PropertyID string `json:"propertyId"`
	Year       int    `json:"year"`
}

type summaryRow struct {
	CategoryID  string               `json:"categoryId"`
	Name        string               `json:"name"`
	Key         core.DistributionKey `json:"key,omitempty"`
	Recoverable bool                 `json:"recoverable"`
	Known       bool                 `json:"known"`
	Amount      core.Money           `json:"amount"`
	Expenses    int                  `json:"expenses"`
}

type persistEntry struct {
	StatementID string `json:"statementId"`
	TenantID    string `json:"tenantId"`
	Error       string `json:"error,omitempty"`
}

type persistReport struct {
	Saved   int            `json:"saved"`
	Failed  int            `json:"failed"`
	Entries []persistEntry `json:"entries"`
}

type billingResponse struct {
	PropertyID    string                  `json:"propertyId"`
	Year          int                     `json:"year"`
	Outcome       billing.Outcome         `json:"outcome"`
	ActiveTenants int                     `json:"activeTenants"`
	TotalCosts    core.Money              `json:"totalCosts"`
	Summary       []summaryRow            `json:"summary"`
	Statements    []core.BillingStatement `json:"statements"`
	Issues        []billing.Issue         `json:"issues"`
	Report        *persistReport          `json:"report,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

func newBillingResponse(w *workflow.Wizard) billingResponse {
	res := w.Result()
	resp := billingResponse{
		PropertyID:    w.Property().ID,
		Year:          w.Year(),
		Outcome:       w.Outcome(),
		ActiveTenants: res.ActiveTenants,
		TotalCosts:    res.TotalCosts,
		Summary:       []summaryRow{},
		Statements:    res.Statements,
		Issues:        res.Issues,
	}
	if resp.Statements == nil {
		resp.Statements = []core.BillingStatement{}
	}
	if resp.Issues == nil {
		resp.Issues = []billing.Issue{}
	}
	for _, row := range w.Summary() {
		resp.Summary = append(resp.Summary, summaryRow{
			CategoryID:  row.CategoryID,
			Name:        row.Name,
			Key:         row.Key,
			Recoverable: row.Recoverable,
			Known:       row.Known,
			Amount:      row.Amount,
			Expenses:    row.Expenses,
		})
	}
	return resp
}

func newPersistReport(r workflow.PersistReport) *persistReport {
	out := &persistReport{Saved: r.Saved(), Failed: len(r.Failed()), Entries: make([]persistEntry, 0, len(r.Entries))}
	for _, e := range r.Entries {
		entry := persistEntry{StatementID: e.StatementID, TenantID: e.TenantID}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

func decodeBillingRequest(w http.ResponseWriter, r *http.Request) (billingRequest, error) {
	var req billingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	if req.PropertyID == "" {
		return req, &core.ValidationError{Field: "propertyId", Err: core.ErrMissingPropertyRef}
	}
	if req.Year == 0 {
		req.Year = currentYear() - 1
	}
	return req, nil
}

// handleBillingPreview computes the statements without saving them.
func (s *Server) handleBillingPreview(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBillingRequest(w, r)
	if err != nil {
		writeError(w, r, log.OpPreview, err)
		return
	}
	wiz, err := s.statements.Preview(r.Context(), req.PropertyID, req.Year)
	if err != nil {
		writeError(w, r, log.OpPreview, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogBillingRun(r.Context(), log.OpPreview,
		req.PropertyID, req.Year, string(wiz.Outcome()), len(wiz.Statements()), len(wiz.Issues()))
	writeJSON(w, http.StatusOK, newBillingResponse(wiz))
}

// handleBillingRun computes and saves the statements. A partial save
// answers 500 with the per-statement report so the run can be retried.
func (s *Server) handleBillingRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBillingRequest(w, r)
	if err != nil {
		writeError(w, r, log.OpPersist, err)
		return
	}
	run, err := s.statements.Run(r.Context(), req.PropertyID, req.Year)
	if err != nil && !errors.Is(err, workflow.ErrPartialPersist) {
		writeError(w, r, log.OpPersist, err)
		return
	}

	resp := billingResponse{
		PropertyID:    req.PropertyID,
		Year:          req.Year,
		Outcome:       run.Result.Outcome(),
		ActiveTenants: run.Result.ActiveTenants,
		TotalCosts:    run.Result.TotalCosts,
		Statements:    run.Result.Statements,
		Issues:        run.Result.Issues,
		Report:        newPersistReport(run.Report),
	}
	if resp.Issues == nil {
		resp.Issues = []billing.Issue{}
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogBillingRun(r.Context(), log.OpPersist,
		req.PropertyID, req.Year, string(resp.Outcome), len(resp.Statements), len(resp.Issues))

	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Billing run partially persisted",
			log.FieldPropertyID, req.PropertyID,
			log.FieldYear, req.Year,
			log.FieldError, err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// filterStatements applies the optional year and status query filters.
func filterStatements(r *http.Request, statements []core.BillingStatement) ([]core.BillingStatement, error) {
	year, err := queryYear(r, 0)
	if err != nil {
		return nil, err
	}
	status := core.StatementStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.IsValid() {
		return nil, badRequest{fmt.Errorf("invalid status %q", status)}
	}
	out := make([]core.BillingStatement, 0, len(statements))
	for _, st := range statements {
		if year != 0 && st.BillingPeriod.Year != year {
			continue
		}
		if status != "" && st.Status != status {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := s.statements.ListStatements(r.Context(), strings.TrimSpace(r.URL.Query().Get("property")))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	statements, err = filterStatements(r, statements)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, statements)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.statements.GetStatement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatementStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	due, err := parseOptionalDate("date", req.Date)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	st, err := s.statements.TransitionStatement(r.Context(), r.PathValue("id"), core.StatementStatus(req.Status), due)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// tenantNames maps tenant IDs to display names; lookup failures only cost
// the names.
func (s *Server) tenantNames(r *http.Request, propertyID string) map[string]string {
	tenants, err := s.portfolio.ListTenants(r.Context(), propertyID)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Tenant names unavailable for export",
			log.FieldPropertyID, propertyID,
			log.FieldError, err)
		return nil
	}
	names := make(map[string]string, len(tenants))
	for _, t := range tenants {
		names[t.ID] = t.FullName()
	}
	return names
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	delimiter, err := export.ParseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		writeError(w, r, log.OpExport, badRequest{err})
		return
	}
	propertyID := strings.TrimSpace(r.URL.Query().Get("property"))
	statements, err := s.statements.ListStatements(r.Context(), propertyID)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	statements, err = filterStatements(r, statements)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteStatementsCSV(&buf, statements, s.tenantNames(r, propertyID), delimiter); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeCSV)
	w.Header().Set("Content-Disposition", `attachment; filename="statements.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	st, err := s.statements.GetStatement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	name := ""
	if t, err := s.portfolio.GetTenant(r.Context(), st.TenantID); err == nil {
		name = t.FullName()
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, log.OpExport, err)
		return
	}

	data, err := export.StatementXLSX(st, name)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, st.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Overviews

func (s *Server) handlePortfolioOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.overview.Portfolio(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePropertyOverview(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r, currentYear())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	ov, err := s.overview.YearOverview(r.Context(), r.PathValue("id"), year)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
