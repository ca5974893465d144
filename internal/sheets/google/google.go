// Package google exports the daily earnings table to a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gigtracker/internal/core"
	"gigtracker/internal/ports"
)

// Header is the first row written to the sheet.
var Header = []interface{}{"Date", "Amount", "Status", "Gig ID"}

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// Options selects the spreadsheet and the service account credentials.
// ServiceAccountJSON wins over ServiceAccountFile.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

// EarningsWriter replaces the contents of one sheet with the daily earnings.
type EarningsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	backoff       time.Duration
}

var _ ports.EarningsWriter = (*EarningsWriter)(nil)

// NewEarningsWriter creates a Sheets client authenticated as a service account.
func NewEarningsWriter(ctx context.Context, opts Options) (*EarningsWriter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "sheet", opts.SheetName)
	return NewEarningsWriterWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewEarningsWriterWithService wraps an existing service, e.g. one pointed
// at a test server.
func NewEarningsWriterWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *EarningsWriter {
	if sheetName == "" {
		sheetName = "Daily Earnings"
	}
	return &EarningsWriter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		backoff:       retryBackoff,
	}
}

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		return []byte(opts.ServiceAccountJSON), nil
	case opts.ServiceAccountFile != "":
		b, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// WriteDailyEarnings clears the sheet and writes a header plus one row per day.
func (w *EarningsWriter) WriteDailyEarnings(ctx context.Context, days []core.DayEarning) error {
	if w.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:D", quoteSheet(w.sheetName))
	err := w.withRetry(ctx, func() error {
		_, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1", quoteSheet(w.sheetName))
	vr := &gsheet.ValueRange{Values: earningsToValues(days)}
	err = w.withRetry(ctx, func() error {
		_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, writeRange, vr).
			ValueInputOption("USER_ENTERED").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	slog.InfoContext(ctx, "Wrote daily earnings", "rows", len(days), "sheet", w.sheetName)
	return nil
}

// earningsToValues renders the table, header first. Amounts are decimal
// strings so the sheet parses them as numbers.
func earningsToValues(days []core.DayEarning) [][]interface{} {
	values := make([][]interface{}, 0, len(days)+1)
	values = append(values, Header)
	for _, d := range days {
		values = append(values, []interface{}{
			d.Date.String(),
			d.Amount.String(),
			string(d.Status),
			d.GigID,
		})
	}
	return values
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// withRetry retries rate-limit and server errors with linear backoff.
func (w *EarningsWriter) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		slog.WarnContext(ctx, "Sheets call failed, retrying", "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * w.backoff):
		}
	}
	return err
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return false
}
