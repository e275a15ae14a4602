package main

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestSeedQuestionsOnlyOnce(t *testing.T) {
	gdb := setupSeedTestDB(t)
	file := filepath.Join(t.TempDir(), "questions.json")

	chain, err := store.NewChain(store.Config[db.Question]{
		Entity:  "questions",
		Local:   store.NewTableBackend[db.Question](gdb, "id asc"),
		Legacy:  store.NewFileBackend(file, store.QuestionSchema),
		Prepare: service.NormalizeQuestionIDs,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}

	now := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	created, err := seedQuestions(context.Background(), chain, now, zerolog.Nop())
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if created != 5 {
		t.Fatalf("expected 5 questions, got %d", created)
	}

	stored := chain.Load(context.Background())
	anonymous := 0
	for i, q := range stored {
		if q.ID != i+1 {
			t.Fatalf("expected contiguous ids, got %+v", stored)
		}
		if q.IsAnonymous() {
			anonymous++
		}
	}
	if anonymous != 2 {
		t.Fatalf("expected 2 anonymous questions, got %d", anonymous)
	}

	again, err := seedQuestions(context.Background(), chain, now, zerolog.Nop())
	if err != nil || again != 0 {
		t.Fatalf("expected second seed to be skipped, got %d (%v)", again, err)
	}

	legacy, err := store.NewFileBackend(file, store.QuestionSchema).Read(context.Background())
	if err != nil || len(legacy) != 5 {
		t.Fatalf("expected legacy mirror with 5 questions, got %d (%v)", len(legacy), err)
	}
}

func TestSeedVisitsSpreadOverThreeDays(t *testing.T) {
	gdb := setupSeedTestDB(t)

	chain, err := store.NewChain(store.Config[db.Visit]{
		Entity:  "visits",
		Local:   store.NewTableBackend[db.Visit](gdb, "date asc, first_visit asc"),
		Prepare: service.NormalizeVisits,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}

	now := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	created, err := seedVisits(context.Background(), chain, now, zerolog.Nop())
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if created != 12 {
		t.Fatalf("expected 12 visit records, got %d", created)
	}

	days := map[string]bool{}
	for _, v := range chain.Load(context.Background()) {
		days[v.Date] = true
	}
	if len(days) != 3 {
		t.Fatalf("expected visits on 3 days, got %v", days)
	}
}
