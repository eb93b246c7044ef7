package queue

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	readRange   = "A2:D"
	appendRange = "A:D"
)

// NewSheetsService authenticates with a service-account key file.
// Extra options (endpoint, HTTP client) are passed through.
func NewSheetsService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*sheets.Service, error) {
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account file %s: %w", credentialsFile, err)
		}
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Sheets is the first worksheet of one Google spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	opts          Options
	logger        *zap.Logger
}

func NewSheets(svc *sheets.Service, spreadsheetID string, opts Options, logger *zap.Logger) (*Sheets, error) {
	if svc == nil {
		return nil, errors.New("sheets service required")
	}
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		opts:          opts.withDefaults(),
		logger:        logger.With(zap.String("spreadsheet", spreadsheetID)),
	}, nil
}

// Check confirms the spreadsheet is reachable with the current credentials.
func (s *Sheets) Check(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet %s: %w", s.spreadsheetID, err)
	}
	s.logger.Debug("spreadsheet reachable", zap.String("title", ss.Properties.Title))
	return nil
}

func (s *Sheets) rows(ctx context.Context) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", readRange, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

func (s *Sheets) Pending(ctx context.Context) ([]KeywordTask, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	tasks := PendingRows(rows, DataStartRow, s.opts.PendingMarker)
	s.logger.Debug("pending rows", zap.Int("rows", len(rows)), zap.Int("pending", len(tasks)))
	return tasks, nil
}

func (s *Sheets) Inventory(ctx context.Context) ([]Link, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	return CompletedLinks(rows, s.opts.DoneStatus), nil
}

// Complete writes the done status and link into columns B and C of row.
func (s *Sheets) Complete(ctx context.Context, row int, link string) error {
	if row < DataStartRow {
		return fmt.Errorf("row %d: %w", row, ErrNoRows)
	}
	rng := fmt.Sprintf("B%d:C%d", row, row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{s.opts.DoneStatus, link}}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	s.logger.Debug("row completed", zap.Int("row", row), zap.String("link", link))
	return nil
}

// Append adds one growth row per topic at the end of the sheet.
func (s *Sheets) Append(ctx context.Context, topics []string) error {
	rows := growthRows(topics, s.opts)
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = make([]interface{}, len(r))
		for j, c := range r {
			values[i][j] = c
		}
	}
	vr := &sheets.ValueRange{Values: values}
	if _, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, appendRange, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append growth rows: %w", err)
	}
	s.logger.Debug("growth rows appended", zap.Int("count", len(rows)))
	return nil
}
