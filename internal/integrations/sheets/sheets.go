// Package sheets reads and writes header-keyed tables in a Google Sheets
// spreadsheet through the Sheets API v4.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/siteworks/recruitops/internal/config"
)

// ErrNotConfigured is returned when no spreadsheet ID is set
var ErrNotConfigured = errors.New("sheets: spreadsheet not configured")

// Row is one data row keyed by its column header
type Row map[string]string

// Get returns the trimmed value for the first header that is present
func (r Row) Get(headers ...string) string {
	for _, h := range headers {
		if v, ok := r[normalizeHeader(h)]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Client wraps a Sheets service bound to one spreadsheet
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// New creates a client. Credentials come from the configured service account
// file, or application default credentials when none is set. Extra options
// are appended last so they can override the endpoint or auth.
func New(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	all := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	all = append(all, opts...)

	svc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, logger: logger.Named("sheets")}, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// ReadRows reads a range whose first row is a header. Header names are
// lower-cased; rows with no values are skipped.
func (c *Client) ReadRows(ctx context.Context, rng string) ([]Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return []Row{}, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		header[i] = normalizeHeader(fmt.Sprint(h))
	}

	rows := make([]Row, 0, len(resp.Values)-1)
	for _, values := range resp.Values[1:] {
		row := make(Row, len(header))
		empty := true
		for i, h := range header {
			if h == "" || i >= len(values) {
				continue
			}
			v := fmt.Sprint(values[i])
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	c.logger.Debug("read sheet rows", zap.String("range", rng), zap.Int("rows", len(rows)))
	return rows, nil
}

func toValues(header []string, rows [][]string) [][]any {
	values := make([][]any, 0, len(rows)+1)
	if len(header) > 0 {
		h := make([]any, len(header))
		for i, v := range header {
			h[i] = v
		}
		values = append(values, h)
	}
	for _, r := range rows {
		row := make([]any, len(r))
		for i, v := range r {
			row[i] = v
		}
		values = append(values, row)
	}
	return values
}

// WriteRows replaces a range with a header row followed by data rows
func (c *Client) WriteRows(ctx context.Context, rng string, header []string, rows [][]string) error {
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: failed to clear %s: %w", rng, err)
	}

	vr := &gsheets.ValueRange{Values: toValues(header, rows)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: failed to write %s: %w", rng, err)
	}

	c.logger.Info("wrote sheet rows", zap.String("range", rng), zap.Int64("cells", resp.UpdatedCells))
	return nil
}

// AppendRows adds data rows after the last populated row of a range
func (c *Client) AppendRows(ctx context.Context, rng string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	vr := &gsheets.ValueRange{Values: toValues(nil, rows)}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: failed to append to %s: %w", rng, err)
	}
	return nil
}
