// Package sheets exports the yearly payoff schedule to a Google Sheets tab.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"shakkin/internal/core"
	applog "shakkin/internal/log"
	"shakkin/internal/projection"
)

var header = []interface{}{"Year", "From", "Principal", "Interest", "Total"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New creates a Sheets client for the given spreadsheet and tab. Without
// explicit options, service account credentials are read from the
// environment.
func New(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if sheetName == "" {
		sheetName = "Payoff"
	}

	if len(opts) == 0 {
		creds, err := credentialsFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// credentialsFromEnv reads GOOGLE_SERVICE_ACCOUNT_JSON, then
// GOOGLE_SERVICE_ACCOUNT_FILE, then GOOGLE_APPLICATION_CREDENTIALS.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.DebugContext(ctx, "Using inline JSON credentials", applog.FieldComponent, applog.ComponentSheets)
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	creds, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	slog.DebugContext(ctx, "Read credentials file",
		applog.FieldComponent, applog.ComponentSheets, "path", path, "size", len(creds))
	return creds, nil
}

// ExportSchedule replaces the tab's contents with the yearly schedule.
// Buckets are labelled with the first month they cover, counted from start.
func (c *Client) ExportSchedule(ctx context.Context, yearly []projection.YearlyEntry, start time.Time) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := scheduleRows(yearly, start)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A1", c.sheetName), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}

	slog.InfoContext(ctx, "Exported payoff schedule to Sheets",
		applog.FieldComponent, applog.ComponentSheets,
		"sheet", c.sheetName,
		"years", len(yearly))
	return nil
}

func scheduleRows(yearly []projection.YearlyEntry, start time.Time) [][]interface{} {
	rows := make([][]interface{}, 0, len(yearly)+1)
	rows = append(rows, header)
	for _, y := range yearly {
		rows = append(rows, []interface{}{
			y.Year + 1,
			projection.PeriodLabel(start, y.Year*12),
			core.RoundAmount(y.Principal).InexactFloat64(),
			core.RoundAmount(y.Interest).InexactFloat64(),
			core.RoundAmount(y.Total).InexactFloat64(),
		})
	}
	return rows
}
