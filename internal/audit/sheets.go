package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docsplit/internal/logger"
)

// ErrMissingSheetCredentials is returned when no service account is configured
// for the Sheets transport.
var ErrMissingSheetCredentials = errors.New("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

var sheetHeaders = []interface{}{
	"ID", "Job", "File", "Kind", "Status", "Start", "End", "Label", "Score",
	"Strict", "Method", "Confidence", "Attempts", "Destination", "Error",
	"Elapsed ms", "Timestamp",
}

// SheetsTransport appends one row per record to a Google Sheet.
type SheetsTransport struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger

	once    sync.Once
	initErr error
}

// NewSheetsTransport connects to the spreadsheet behind sheetURL using the
// service account from the environment.
func NewSheetsTransport(ctx context.Context, sheetURL, sheetName string) (*SheetsTransport, error) {
	const op = "NewSheetsTransport"

	id, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var creds []byte
	if file := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); file != "" {
		creds, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if raw := os.Getenv("GOOGLE_CREDENTIALS"); raw != "" {
		creds = []byte(raw)
	} else {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSheetCredentials)
	}

	jwt, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(context.Background())))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	if sheetName == "" {
		sheetName = DefaultOptions().SheetName
	}
	return &SheetsTransport{
		svc:           svc,
		spreadsheetID: id,
		sheetName:     sheetName,
		log:           logger.WithComponent("audit-sheets"),
	}, nil
}

func extractSpreadsheetID(url string) (string, error) {
	m := spreadsheetURL.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL %q", url)
	}
	return m[1], nil
}

// Send implements Transport.
func (t *SheetsTransport) Send(ctx context.Context, rec Record) error {
	t.once.Do(func() { t.initErr = t.ensureSheet(ctx) })
	if t.initErr != nil {
		return t.initErr
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{rowValues(rec)}}
	_, err := t.svc.Spreadsheets.Values.Append(t.spreadsheetID, t.sheetName+"!A:Q", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheetsTransport.Send: %w", err)
	}
	return nil
}

// Close implements Transport.
func (t *SheetsTransport) Close() error { return nil }

// ensureSheet creates the tab and its header row when they are missing.
func (t *SheetsTransport) ensureSheet(ctx context.Context) error {
	const op = "ensureSheet"

	ss, err := t.svc.Spreadsheets.Get(t.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	exists := false
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == t.sheetName {
			exists = true
			break
		}
	}
	if !exists {
		t.log.Info().Str("sheet", t.sheetName).Msg("Creating audit sheet")
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: t.sheetName}},
			}},
		}
		if _, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
	}

	headerRange := t.sheetName + "!A1:Q1"
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{sheetHeaders}}
	if _, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, headerRange, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}
	return nil
}

// rowValues lays out a record in the same column order as sheetHeaders.
func rowValues(rec Record) []interface{} {
	return []interface{}{
		rec.ID,
		rec.JobID,
		rec.File,
		string(rec.Kind),
		string(rec.Status),
		rec.StartPage,
		rec.EndPage,
		rec.Label,
		rec.Score,
		rec.StrictValid,
		rec.Method,
		rec.Confidence,
		rec.Attempts,
		rec.Destination,
		rec.Error,
		rec.ElapsedMs,
		rec.Timestamp.Format(time.RFC3339),
	}
}
