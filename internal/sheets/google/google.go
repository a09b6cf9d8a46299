package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"immo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheDuration = 2 * time.Minute

var statementHeader = []any{
	"Statement", "Version", "Property", "Unit", "Tenant ID", "Tenant",
	"Year", "Total costs", "Tenant share", "Advances", "Balance", "Status",
}

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the billing year is prefixed.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Row index cache for one sheet, so repeated upserts skip reading
	// column A.
	mu                 sync.Mutex
	cachedSheet        string
	cachedRowCount     int
	cachedRows         map[string]int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var (
	_ sheets.StatementWriter = (*Client)(nil)
	_ sheets.StatementLister = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Nebenkosten"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetBase:          base,
		cacheValidDuration: defaultCacheDuration,
	}, nil
}

// credentials resolves the service account key from config, falling back
// to GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive
// between sync batches.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// SheetName returns the sheet holding statements of year.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// InvalidateRowCache forces the next upsert to re-read the sheet.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// rowFor returns the 1-based row of id in sheet and whether it exists.
// New statements go below the last used row.
func (c *Client) rowFor(ctx context.Context, sheet, id string) (int, bool, error) {
	c.mu.Lock()
	if c.cachedSheet == sheet && time.Now().Before(c.cacheExpiresAt) {
		row, ok := c.cachedRows[id]
		next := c.cachedRowCount + 1
		c.mu.Unlock()
		if ok {
			return row, true, nil
		}
		return next, false, nil
	}
	c.mu.Unlock()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, fmt.Sprintf("%s!A:A", sheet)).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	rows := indexRows(resp.Values)

	c.mu.Lock()
	c.cachedSheet = sheet
	c.cachedRowCount = len(resp.Values)
	c.cachedRows = rows
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	next := c.cachedRowCount + 1
	c.mu.Unlock()

	if row, ok := rows[id]; ok {
		return row, true, nil
	}
	return next, false, nil
}

func (c *Client) remember(sheet, id string, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedSheet != sheet {
		return
	}
	if c.cachedRows == nil {
		c.cachedRows = map[string]int{}
	}
	c.cachedRows[id] = row
	if row > c.cachedRowCount {
		c.cachedRowCount = row
	}
}

// UpsertStatement writes row into the year's sheet, replacing an existing
// row of the same statement.
func (c *Client) UpsertStatement(ctx context.Context, row sheets.StatementRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.StatementID == "" {
		return "", errors.New("statement row without id")
	}

	sheet := c.SheetName(row.Year)
	rowNum, exists, err := c.rowFor(ctx, sheet, row.StatementID)
	if err != nil {
		return "", err
	}

	values := [][]any{formatStatementRow(row)}
	if rowNum == 1 {
		// empty sheet: header first
		values = [][]any{statementHeader, formatStatementRow(row)}
	}
	rng := fmt.Sprintf("%s!A%d:L%d", sheet, rowNum, rowNum+len(values)-1)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.InvalidateRowCache()
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	dataRow := rowNum + len(values) - 1
	c.remember(sheet, row.StatementID, dataRow)

	slog.DebugContext(ctx, "Statement row written",
		"statement_id", row.StatementID,
		"sheet", sheet,
		"row", dataRow,
		"replaced", exists)
	return fmt.Sprintf("%s!A%d:L%d", sheet, dataRow, dataRow), nil
}

// ListStatementRows reads back the year's sheet.
func (c *Client) ListStatementRows(ctx context.Context, year int) ([]sheets.StatementRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:L", c.SheetName(year))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseStatementRows(resp.Values), nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
