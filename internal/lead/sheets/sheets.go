// Package sheets stores leads in a Google Sheets worksheet.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/worker"
)

// Config selects the worksheet and how to reach it.
type Config struct {
	SpreadsheetID string
	Worksheet     string
	// CredentialsJSON is a service-account key. Ignored when Options already carry auth.
	CredentialsJSON []byte
	// Endpoint overrides the API base URL (mock server).
	Endpoint string
	Options  []option.ClientOption
}

// Store reads and writes one worksheet. All cell writes of a call go out in a single
// values:batchUpdate request.
type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	worksheet     string
	retry         worker.Options
	logger        *zap.Logger
}

var _ lead.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, eris.New("sheets: spreadsheet id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	worksheet := strings.TrimSpace(cfg.Worksheet)
	if worksheet == "" {
		worksheet = "Sheet1"
	}

	opts := append([]option.ClientOption(nil), cfg.Options...)
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/")+"/"))
		if len(cfg.CredentialsJSON) == 0 {
			opts = append(opts, option.WithoutAuthentication())
		}
	}
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts,
			option.WithCredentialsJSON(cfg.CredentialsJSON),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		)
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}
	return &Store{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     worksheet,
		retry: worker.Options{
			MaxRetries:        3,
			RequestTimeout:    30 * time.Second,
			BackoffInitial:    time.Second,
			BackoffMax:        10 * time.Second,
			BackoffJitterFrac: 0.2,
		},
		logger: logger,
	}, nil
}

func (s *Store) ReadAll(ctx context.Context) ([][]string, error) {
	resp, err := worker.Retry(ctx, nil, s.retry, func(ctx context.Context) (*sheetsapi.ValueRange, error) {
		vr, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.worksheet)).
			MajorDimension("ROWS").
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return vr, wrapAPIError("values.get", err)
	})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		row := make([]string, len(r))
		for j, v := range r {
			if v != nil {
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *Store) WriteCells(ctx context.Context, cells []lead.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	data := make([]*sheetsapi.ValueRange, 0, len(cells))
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			return eris.Errorf("sheets: invalid cell address row=%d col=%d", c.Row, c.Col)
		}
		data = append(data, &sheetsapi.ValueRange{
			Range:  quoteSheet(s.worksheet) + "!" + A1(c.Row, c.Col),
			Values: [][]interface{}{{c.Value}},
		})
	}
	req := &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}

	_, err := worker.Retry(ctx, nil, s.retry, func(ctx context.Context) (*sheetsapi.BatchUpdateValuesResponse, error) {
		resp, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
		return resp, wrapAPIError("values.batchUpdate", err)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("sheet cells written", zap.Int("cells", len(cells)))
	return nil
}

// A1 converts a zero-based row and column into A1 notation.
func A1(row, col int) string {
	return ColumnName(col) + fmt.Sprint(row+1)
}

// ColumnName converts a zero-based column index into its letter name (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	var b []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
