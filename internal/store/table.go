package store

import (
	"context"

	"gorm.io/gorm"
)

const tableBatchSize = 200

// TableBackend 是基于本地 sqlite 的存储层，也是写入失败时的兜底。
type TableBackend[T any] struct {
	db    *gorm.DB
	order string
}

// NewTableBackend creates a TableBackend; order is a SQL ORDER BY clause used on reads.
func NewTableBackend[T any](gdb *gorm.DB, order string) *TableBackend[T] {
	return &TableBackend[T]{db: gdb, order: order}
}

func (b *TableBackend[T]) Name() string { return "table" }

func (b *TableBackend[T]) Read(ctx context.Context) ([]T, error) {
	var rows []T
	query := b.db.WithContext(ctx)
	if b.order != "" {
		query = query.Order(b.order)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Write 在一个事务中清空表并写入全部记录。
func (b *TableBackend[T]) Write(ctx context.Context, records []T) error {
	rows := append([]T(nil), records...)

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(new(T)).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, tableBatchSize).Error
	})
}
