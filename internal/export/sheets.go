package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gastos/internal/core"
)

// SheetsClient writes statements to a Google spreadsheet, one row per
// statement. Re-exporting a statement overwrites its row, so the sheet
// always reflects the latest ledger state.
type SheetsClient struct {
	svc             *gsheet.Service
	spreadsheetID   string
	statementsSheet string
}

var _ StatementWriter = (*SheetsClient)(nil)

// NewSheetsFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME (default
// "Statements"); the current year is prefixed automatically.
func NewSheetsFromEnv(ctx context.Context) (*SheetsClient, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = "Statements"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsClient{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		statementsSheet: yearPrefixedName(base, time.Now().Year()),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteStatement upserts the statement row keyed by column A. Columns:
// key, account name, closing, due date, total, outstanding, minimum
// payment, item count.
func (c *SheetsClient) WriteStatement(ctx context.Context, account core.Account, stmt core.Statement, outstanding core.Money) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	key := stmt.Period.Key(account.ID)
	row, err := c.findRow(ctx, key)
	if err != nil {
		return "", err
	}

	minimum := account.MinPayment.MinimumDue(stmt.Total)
	rng := fmt.Sprintf("%s!A%d:H%d", c.statementsSheet, row, row)
	values := &gsheet.ValueRange{Values: [][]any{{
		key,
		account.Name,
		stmt.Period.Closing.String(),
		stmt.Period.DueDate.String(),
		euros(stmt.Total),
		euros(outstanding),
		euros(minimum),
		len(stmt.Items),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	return rng, nil
}

// findRow locates the row already holding the key, or the first empty row.
func (c *SheetsClient) findRow(ctx context.Context, key string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.statementsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i + 1, nil
		}
	}
	return len(resp.Values) + 1, nil
}

func euros(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}

// yearPrefixedName returns "<year> <base>" unless base already starts with
// a 4-digit year.
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
