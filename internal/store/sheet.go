package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SheetClient 抽象远程表格服务，按工作表名整体读写。
// ReadRows 返回的第一行为表头。
type SheetClient interface {
	ReadRows(ctx context.Context, worksheet string) ([][]string, error)
	WriteRows(ctx context.Context, worksheet string, rows [][]any) error
}

// SheetBackend 把一个工作表映射为记录集合。
type SheetBackend[T any] struct {
	client    SheetClient
	worksheet string
	schema    Schema[T]
	timeout   time.Duration
}

// NewSheetBackend creates a SheetBackend; every call is bounded by timeout.
func NewSheetBackend[T any](client SheetClient, worksheet string, schema Schema[T], timeout time.Duration) *SheetBackend[T] {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SheetBackend[T]{client: client, worksheet: worksheet, schema: schema, timeout: timeout}
}

func (b *SheetBackend[T]) Name() string { return "sheet" }

func (b *SheetBackend[T]) Read(ctx context.Context) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	rows, err := b.client.ReadRows(ctx, b.worksheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", b.worksheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	records := make([]T, 0, len(rows)-1)
	for _, row := range rows[1:] {
		fields := make(map[string]any, len(header))
		for i, column := range header {
			if column == "" || i >= len(row) {
				continue
			}
			fields[column] = row[i]
		}
		if record, ok := b.schema.Decode(fields); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (b *SheetBackend[T]) Write(ctx context.Context, records []T) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	header := make([]any, len(b.schema.Columns))
	for i, column := range b.schema.Columns {
		header[i] = column
	}

	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, header)
	for _, record := range records {
		rows = append(rows, b.schema.Row(record))
	}

	if err := b.client.WriteRows(ctx, b.worksheet, rows); err != nil {
		return fmt.Errorf("write worksheet %s: %w", b.worksheet, err)
	}
	return nil
}
