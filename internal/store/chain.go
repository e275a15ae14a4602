package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrAllBackendsFailed 表示一次保存在所有存储层上都失败了。
var ErrAllBackendsFailed = errors.New("all storage backends failed")

const (
	RoleRemote = "remote"
	RoleLocal  = "local"
	RoleLegacy = "legacy"

	SourceNone = "none"
)

// Config 描述一条存储链。Local 必填，Remote 与 Legacy 可选。
type Config[T any] struct {
	Entity string
	Remote Backend[T]
	Local  Backend[T]
	Legacy Backend[T]
	// Prepare 在远程/旧文件读取后以及每次保存前执行，用于修复记录。
	Prepare  func([]T) []T
	Observer Observer
	Logger   zerolog.Logger
}

// Chain 按优先级组合多个存储层：读取时逐层回退并回填本地库，写入时尽力写入每一层。
// 单个存储层的失败只会被记录，不会中断调用方。
type Chain[T any] struct {
	entity   string
	remote   Backend[T]
	local    Backend[T]
	legacy   Backend[T]
	prepare  func([]T) []T
	observer Observer
	log      zerolog.Logger
}

// NewChain validates cfg and builds the chain.
func NewChain[T any](cfg Config[T]) (*Chain[T], error) {
	if cfg.Local == nil {
		return nil, fmt.Errorf("store %s: local backend is required", cfg.Entity)
	}

	prepare := cfg.Prepare
	if prepare == nil {
		prepare = func(records []T) []T { return records }
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	return &Chain[T]{
		entity:   cfg.Entity,
		remote:   cfg.Remote,
		local:    cfg.Local,
		legacy:   cfg.Legacy,
		prepare:  prepare,
		observer: observer,
		log:      cfg.Logger.With().Str("component", "store").Str("entity", cfg.Entity).Logger(),
	}, nil
}

// Load 返回第一个非空存储层的内容；全部为空或失败时返回空切片，不返回错误。
func (c *Chain[T]) Load(ctx context.Context) []T {
	records, _ := c.LoadWithSource(ctx)
	return records
}

// LoadWithSource is Load that also reports which role served the records.
func (c *Chain[T]) LoadWithSource(ctx context.Context) ([]T, string) {
	if c.remote != nil {
		if records, ok := c.tryRead(ctx, c.remote); ok {
			records = c.prepare(records)
			c.backfill(ctx, records, "backfill")
			return records, RoleRemote
		}
	}

	if records, ok := c.tryRead(ctx, c.local); ok {
		return c.prepare(records), RoleLocal
	}

	if c.legacy != nil {
		if records, ok := c.tryRead(ctx, c.legacy); ok {
			records = c.prepare(records)
			c.backfill(ctx, records, "migrate")
			return records, RoleLegacy
		}
	}

	return []T{}, SourceNone
}

// Save 依次写入远程表格、本地库与旧文件。仅当所有层都失败时返回 ErrAllBackendsFailed。
func (c *Chain[T]) Save(ctx context.Context, records []T) (SaveReport, error) {
	records = c.prepare(records)
	report := SaveReport{Entity: c.entity}

	for _, tier := range c.tiers() {
		err := c.call(ctx, tier.backend, "write", func(ctx context.Context) error {
			return tier.backend.Write(ctx, records)
		})
		report.Attempts = append(report.Attempts, Attempt{Role: tier.role, Backend: tier.backend.Name(), Err: err})
		if err != nil {
			c.log.Warn().Err(err).Str("backend", tier.backend.Name()).Str("role", tier.role).Msg("save failed, continuing")
		}
	}

	if !report.Succeeded() {
		c.log.Error().Int("records", len(records)).Msg("save failed on every backend")
		return report, fmt.Errorf("save %s: %w", c.entity, ErrAllBackendsFailed)
	}
	return report, nil
}

// Tiers 返回当前配置的存储层，用于后台展示存储状态。
func (c *Chain[T]) Tiers() []TierStatus {
	tiers := c.tiers()
	statuses := make([]TierStatus, 0, len(tiers))
	for _, tier := range tiers {
		statuses = append(statuses, TierStatus{Role: tier.role, Backend: tier.backend.Name()})
	}
	return statuses
}

// RemoteEnabled reports whether a remote tier is configured.
func (c *Chain[T]) RemoteEnabled() bool {
	return c.remote != nil
}

type tier[T any] struct {
	role    string
	backend Backend[T]
}

func (c *Chain[T]) tiers() []tier[T] {
	tiers := make([]tier[T], 0, 3)
	if c.remote != nil {
		tiers = append(tiers, tier[T]{role: RoleRemote, backend: c.remote})
	}
	tiers = append(tiers, tier[T]{role: RoleLocal, backend: c.local})
	if c.legacy != nil {
		tiers = append(tiers, tier[T]{role: RoleLegacy, backend: c.legacy})
	}
	return tiers
}

func (c *Chain[T]) tryRead(ctx context.Context, backend Backend[T]) ([]T, bool) {
	var records []T
	err := c.call(ctx, backend, "read", func(ctx context.Context) error {
		var readErr error
		records, readErr = backend.Read(ctx)
		return readErr
	})
	if err != nil {
		c.log.Warn().Err(err).Str("backend", backend.Name()).Msg("read failed, falling back")
		return nil, false
	}
	return records, len(records) > 0
}

// backfill 把从其他层读到的数据写入本地库，失败仅记录日志。
func (c *Chain[T]) backfill(ctx context.Context, records []T, op string) {
	err := c.call(ctx, c.local, op, func(ctx context.Context) error {
		return c.local.Write(ctx, records)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Msg("local backfill failed")
	}
}

func (c *Chain[T]) call(ctx context.Context, backend Backend[T], op string, fn func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s panicked: %v", backend.Name(), op, r)
		}
		c.observer.ObserveBackend(c.entity, backend.Name(), op, err, time.Since(start))
	}()
	return fn(ctx)
}

// Attempt 记录一次写入尝试的结果。
type Attempt struct {
	Role    string
	Backend string
	Err     error
}

// SaveReport 汇总一次保存在各存储层上的结果。
type SaveReport struct {
	Entity   string
	Attempts []Attempt
}

// Succeeded reports whether at least one tier accepted the write.
func (r SaveReport) Succeeded() bool {
	for _, attempt := range r.Attempts {
		if attempt.Err == nil {
			return true
		}
	}
	return false
}

// Warnings 返回失败层的描述，只应展示给已登录的管理员。
func (r SaveReport) Warnings() []string {
	warnings := make([]string, 0)
	for _, attempt := range r.Attempts {
		if attempt.Err != nil {
			warnings = append(warnings, fmt.Sprintf("%s(%s) 저장 실패: %v", attempt.Role, attempt.Backend, attempt.Err))
		}
	}
	return warnings
}

// TierStatus describes one configured tier.
type TierStatus struct {
	Role    string `json:"role"`
	Backend string `json:"backend"`
}
