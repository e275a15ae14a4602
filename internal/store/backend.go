package store

import (
	"context"
	"time"
)

// Backend 是单一存储层的读写契约。Write 总是整体替换该层中的全部记录。
type Backend[T any] interface {
	Name() string
	Read(ctx context.Context) ([]T, error)
	Write(ctx context.Context, records []T) error
}

// Observer receives one call per backend operation.
type Observer interface {
	ObserveBackend(entity, backend, op string, err error, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveBackend(string, string, string, error, time.Duration) {}
