package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// failingBackend 模拟不可用的远程表格。
type failingBackend[T any] struct{}

func (failingBackend[T]) Name() string { return "sheet" }

func (failingBackend[T]) Read(context.Context) ([]T, error) {
	return nil, errors.New("remote unavailable")
}

func (failingBackend[T]) Write(context.Context, []T) error {
	return errors.New("remote unavailable")
}

type questionFixture struct {
	records *Records[db.Question]
	local   *store.TableBackend[db.Question]
}

func newQuestionFixture(t *testing.T, remote store.Backend[db.Question], seed ...db.Question) questionFixture {
	t.Helper()

	local := store.NewTableBackend[db.Question](setupServiceTestDB(t), "id asc")
	require.NoError(t, local.Write(context.Background(), seed))

	chain, err := store.NewChain(store.Config[db.Question]{
		Entity:  "questions",
		Remote:  remote,
		Local:   local,
		Prepare: NormalizeQuestionIDs,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	return questionFixture{records: NewRecords[db.Question](chain), local: local}
}

func (f questionFixture) stored(t *testing.T) []db.Question {
	t.Helper()
	rows, err := f.local.Read(context.Background())
	require.NoError(t, err)
	return rows
}

func newVisitFixture(t *testing.T) (*Records[db.Visit], *store.TableBackend[db.Visit]) {
	t.Helper()

	local := store.NewTableBackend[db.Visit](setupServiceTestDB(t), "date asc, first_visit asc")
	chain, err := store.NewChain(store.Config[db.Visit]{
		Entity:  "visits",
		Local:   local,
		Prepare: NormalizeVisits,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return NewRecords[db.Visit](chain), local
}

func seedQuestions() []db.Question {
	return []db.Question{
		{ID: 1, Author: "김철수", Body: "회의는 언제 시작하나요?", Timestamp: "2025-03-01 09:00:00", Likes: 5},
		{ID: 2, Author: db.AnonymousAuthor, Body: "Slides 공유 부탁드립니다", Timestamp: "2025-03-01 10:15:00", Likes: 0},
		{ID: 3, Author: "박영희", Body: "점심 메뉴는?", Timestamp: "2025-03-01 10:45:00", Likes: 10},
	}
}
