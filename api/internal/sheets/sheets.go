// Package sheets writes relief records into a Google spreadsheet, one
// worksheet per calendar month.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"relief-bot/api/internal/calendar"
	"relief-bot/api/internal/commit"
	"relief-bot/api/internal/relief"
)

type Worksheet struct {
	Title   string
	SheetID int64
}

func (w Worksheet) Name() string { return w.Title }

type Store struct {
	svc           *gsheets.Service
	spreadsheetID string

	mu    sync.Mutex
	cache map[string]Worksheet
}

func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is empty")
	}
	opts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, opts...)
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID, cache: make(map[string]Worksheet)}, nil
}

// Title names the worksheet holding records of date, e.g. "Oktober 2026".
func Title(date time.Time) string {
	return calendar.Title(date.Year(), date.Month())
}

// SelectPartition finds the month's worksheet, creating it with a header
// row when it does not exist yet.
func (s *Store) SelectPartition(ctx context.Context, date time.Time) (commit.Partition, error) {
	title := Title(date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.cache[title]; ok {
		return ws, nil
	}

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		s.cache[sh.Properties.Title] = Worksheet{Title: sh.Properties.Title, SheetID: sh.Properties.SheetId}
	}
	if ws, ok := s.cache[title]; ok {
		return ws, nil
	}

	ws, err := s.create(ctx, title)
	if err != nil {
		return nil, err
	}
	s.cache[title] = ws
	return ws, nil
}

func (s *Store) create(ctx context.Context, title string) (Worksheet, error) {
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title:          title,
					GridProperties: &gsheets.GridProperties{FrozenRowCount: 1},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return Worksheet{}, fmt.Errorf("sheets: add worksheet %q: %w", title, err)
	}
	ws := Worksheet{Title: title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		ws.SheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	header := make([]any, len(relief.Columns))
	for i, c := range relief.Columns {
		header[i] = c
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1(title, 1), &gsheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return Worksheet{}, fmt.Errorf("sheets: write header %q: %w", title, err)
	}
	return ws, nil
}

func (s *Store) Append(ctx context.Context, p commit.Partition, values []any) error {
	ws, err := worksheet(p)
	if err != nil {
		return err
	}
	_, err = s.svc.Spreadsheets.Values.Append(s.spreadsheetID, a1(ws.Title, 1), &gsheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: append to %q: %w", ws.Title, err)
	}
	return nil
}

// InsertAt inserts values as data row index (0 = directly below the header).
// Row insertion and cell write go in one batch so concurrent inserts from
// different chats cannot overwrite each other.
func (s *Store) InsertAt(ctx context.Context, p commit.Partition, index int, values []any) error {
	ws, err := worksheet(p)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("sheets: negative row index %d", index)
	}
	row := int64(index + 1)

	cells := make([]*gsheets.CellData, len(values))
	for i, v := range values {
		str := fmt.Sprint(v)
		cells[i] = &gsheets.CellData{UserEnteredValue: &gsheets.ExtendedValue{StringValue: &str}}
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{
			{InsertDimension: &gsheets.InsertDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:         ws.SheetID,
					Dimension:       "ROWS",
					StartIndex:      row,
					EndIndex:        row + 1,
					ForceSendFields: []string{"SheetId"},
				},
				ForceSendFields: []string{"InheritFromBefore"},
			}},
			{UpdateCells: &gsheets.UpdateCellsRequest{
				Start: &gsheets.GridCoordinate{
					SheetId:         ws.SheetID,
					RowIndex:        row,
					ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"},
				},
				Rows:   []*gsheets.RowData{{Values: cells}},
				Fields: "userEnteredValue",
			}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: insert into %q: %w", ws.Title, err)
	}
	return nil
}

func worksheet(p commit.Partition) (Worksheet, error) {
	ws, ok := p.(Worksheet)
	if !ok {
		return Worksheet{}, fmt.Errorf("sheets: foreign partition %T", p)
	}
	return ws, nil
}

// a1 builds an A1 range for the given 1-based row of a worksheet.
func a1(title string, row int) string {
	return fmt.Sprintf("'%s'!A%d", strings.ReplaceAll(title, "'", "''"), row)
}
