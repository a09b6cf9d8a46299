package google

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"immo/internal/core"
	"immo/internal/sheets"
)

func formatStatementRow(r sheets.StatementRow) []any {
	return []any{
		r.StatementID,
		r.Version,
		r.PropertyID,
		r.UnitID,
		r.TenantID,
		r.TenantName,
		r.Year,
		r.TotalCosts.String(),
		r.TenantShare.String(),
		r.AdvancePayments.String(),
		r.Balance.String(),
		string(r.Status),
	}
}

// indexRows maps statement ids in column A to their 1-based row.
func indexRows(values [][]any) map[string]int {
	rows := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(toStrings(row[:1])[0])
		if id == "" || i == 0 && strings.EqualFold(id, "statement") {
			continue
		}
		rows[id] = i + 1
	}
	return rows
}

// parseStatementRows converts a values matrix into rows, skipping the
// header and anything without a statement id.
func parseStatementRows(values [][]any) []sheets.StatementRow {
	var out []sheets.StatementRow
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "statement") {
			continue
		}
		version, _ := strconv.ParseInt(safeGet(cols, 1), 10, 64)
		year, _ := strconv.Atoi(safeGet(cols, 6))
		out = append(out, sheets.StatementRow{
			StatementID:     cols[0],
			Version:         version,
			PropertyID:      safeGet(cols, 2),
			UnitID:          safeGet(cols, 3),
			TenantID:        safeGet(cols, 4),
			TenantName:      safeGet(cols, 5),
			Year:            year,
			TotalCosts:      parseAmount(safeGet(cols, 7)),
			TenantShare:     parseAmount(safeGet(cols, 8)),
			AdvancePayments: parseAmount(safeGet(cols, 9)),
			Balance:         parseAmount(safeGet(cols, 10)),
			Status:          core.StatementStatus(safeGet(cols, 11)),
		})
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount accepts plain decimals and German formatted values such as
// "1.234,56 €". Unparseable input yields zero.
func parseAmount(s string) core.Money {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if s == "" {
		return core.Zero
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Zero
	}
	return core.NewMoney(d)
}
