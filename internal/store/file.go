package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// FileBackend 将记录保存为缩进排版的 UTF-8 JSON 数组，用于兼容旧版数据文件。
type FileBackend[T any] struct {
	path   string
	schema Schema[T]
}

// NewFileBackend creates a FileBackend reading and writing path.
func NewFileBackend[T any](path string, schema Schema[T]) *FileBackend[T] {
	return &FileBackend[T]{path: path, schema: schema}
}

func (b *FileBackend[T]) Name() string { return "file" }

// Path returns the backing file location.
func (b *FileBackend[T]) Path() string { return b.path }

// Read 读取文件；文件不存在视为空集合。
func (b *FileBackend[T]) Read(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}

	records := make([]T, 0, len(raw))
	for _, fields := range raw {
		if record, ok := b.schema.Decode(fields); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// Write 先写入临时文件再重命名，避免留下半截文件。
func (b *FileBackend[T]) Write(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []T{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(b.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := b.path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, b.path)
}
