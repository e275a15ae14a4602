package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/questionbox/internal/config"
	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/logger"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
)

// 演示数据生成器：向本地数据库与 JSON 文件写入示例问题和访问记录。
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("配置加载失败: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, "pretty")

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Msg("数据库初始化失败")
	}

	questions, err := store.NewChain(store.Config[db.Question]{
		Entity:  "questions",
		Local:   store.NewTableBackend[db.Question](db.DB, "id asc"),
		Legacy:  store.NewFileBackend(cfg.QuestionsFile, store.QuestionSchema),
		Prepare: service.NormalizeQuestionIDs,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("问题存储初始化失败")
	}
	visits, err := store.NewChain(store.Config[db.Visit]{
		Entity:  "visits",
		Local:   store.NewTableBackend[db.Visit](db.DB, "date asc, first_visit asc"),
		Legacy:  store.NewFileBackend(cfg.VisitsFile, store.VisitSchema),
		Prepare: service.NormalizeVisits,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("访问记录存储初始化失败")
	}

	fmt.Println("开始生成演示数据...")

	ctx := context.Background()
	now := time.Now().In(cfg.Location)

	created, err := seedQuestions(ctx, questions, now, log)
	if err != nil {
		log.Fatal().Err(err).Msg("问题写入失败")
	}
	tracked, err := seedVisits(ctx, visits, now, log)
	if err != nil {
		log.Fatal().Err(err).Msg("访问记录写入失败")
	}

	fmt.Printf("演示数据生成完成！问题: %d 条, 访问记录: %d 条\n", created, tracked)
}

// seedQuestions 仅在没有任何问题时写入示例问题，返回写入数量。
func seedQuestions(ctx context.Context, chain *store.Chain[db.Question], now time.Time, log zerolog.Logger) (int, error) {
	if existing := chain.Load(ctx); len(existing) > 0 {
		log.Info().Int("existing", len(existing)).Msg("问题已存在，跳过创建")
		return 0, nil
	}

	samples := []struct {
		author string
		body   string
		likes  int
		ago    time.Duration
	}{
		{"김철수", "오늘 발표 자료는 어디에서 받을 수 있나요?", 12, 3 * time.Hour},
		{"", "실무에서 가장 어려웠던 점은 무엇인가요?", 8, 150 * time.Minute},
		{"박영희", "팀 규모가 작을 때도 같은 방식을 적용할 수 있을까요?", 5, 2 * time.Hour},
		{"", "추천하시는 학습 자료가 있나요?", 3, 90 * time.Minute},
		{"이민수", "다음 세미나 일정이 궁금합니다.", 0, 30 * time.Minute},
	}

	questions := make([]db.Question, 0, len(samples))
	for i, sample := range samples {
		author := sample.author
		if author == "" {
			author = db.AnonymousAuthor
		}
		questions = append(questions, db.Question{
			ID:        i + 1,
			Author:    author,
			Body:      sample.body,
			Timestamp: now.Add(-sample.ago).Format(db.TimestampLayout),
			Likes:     sample.likes,
		})
	}

	report, err := chain.Save(ctx, questions)
	for _, warning := range report.Warnings() {
		log.Warn().Msg(warning)
	}
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

// seedVisits 生成最近三天的访问记录，已有记录时跳过。
func seedVisits(ctx context.Context, chain *store.Chain[db.Visit], now time.Time, log zerolog.Logger) (int, error) {
	if existing := chain.Load(ctx); len(existing) > 0 {
		log.Info().Int("existing", len(existing)).Msg("访问记录已存在，跳过创建")
		return 0, nil
	}

	visits := make([]db.Visit, 0)
	for day := 2; day >= 0; day-- {
		date := now.AddDate(0, 0, -day)
		for session := 0; session < 3+day; session++ {
			first := date.Add(-time.Duration(session+1) * 20 * time.Minute)
			visits = append(visits, db.Visit{
				SessionID:  fmt.Sprintf("demo%02d%02d", day, session),
				Date:       first.Format(db.DateLayout),
				FirstVisit: first.Format(db.TimestampLayout),
				LastVisit:  first.Add(5 * time.Minute).Format(db.TimestampLayout),
				VisitCount: session + 1,
			})
		}
	}

	if _, err := chain.Save(ctx, visits); err != nil {
		return 0, err
	}
	return len(visits), nil
}
