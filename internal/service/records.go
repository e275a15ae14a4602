package service

import (
	"context"
	"sync"

	"github.com/questionbox/internal/store"
)

// RecordStore 是服务层依赖的存储契约，由 store.Chain 实现。
type RecordStore[T any] interface {
	Load(ctx context.Context) []T
	Save(ctx context.Context, records []T) (store.SaveReport, error)
}

// Records 串行化同一实体上的"读取-修改-写入"过程，
// 避免同一进程内的并发点赞或提交互相覆盖。
type Records[T any] struct {
	mu    sync.Mutex
	store RecordStore[T]
}

// NewRecords wraps a RecordStore.
func NewRecords[T any](s RecordStore[T]) *Records[T] {
	return &Records[T]{store: s}
}

// Snapshot 读取当前记录。
func (r *Records[T]) Snapshot(ctx context.Context) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Load(ctx)
}

// Update 在锁内加载记录并交给 fn 修改，fn 返回错误时不写入。
func (r *Records[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) (store.SaveReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := fn(r.store.Load(ctx))
	if err != nil {
		return store.SaveReport{}, err
	}
	return r.store.Save(ctx, updated)
}
