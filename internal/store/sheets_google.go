package store

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheetsClient 通过 Sheets API 读写一个电子表格中的工作表。
type GoogleSheetsClient struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
}

// NewGoogleSheetsClient builds a client from a service-account credentials file.
func NewGoogleSheetsClient(ctx context.Context, credentialsFile, spreadsheetID string) (*GoogleSheetsClient, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleSheetsClient{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID}, nil
}

func (c *GoogleSheetsClient) ReadRows(ctx context.Context, worksheet string) ([][]string, error) {
	resp, err := c.values.Get(c.spreadsheetID, quoteSheet(worksheet)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRows 清空工作表后从 A1 开始写入。
func (c *GoogleSheetsClient) WriteRows(ctx context.Context, worksheet string, rows [][]any) error {
	sheetRange := quoteSheet(worksheet)
	if _, err := c.values.Clear(c.spreadsheetID, sheetRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return err
	}

	_, err := c.values.Update(c.spreadsheetID, sheetRange+"!A1", &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
