package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/questionbox/internal/config"
	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/handler"
	"github.com/questionbox/internal/logger"
	"github.com/questionbox/internal/metrics"
	"github.com/questionbox/internal/router"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("starting questionbox server")
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to initialize database")
	}

	rec := metrics.New(cfg.MetricsEnabled)

	var sheets store.SheetClient
	if cfg.Sheets.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sheets.Timeout)
		client, err := store.NewGoogleSheetsClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID)
		cancel()
		if err != nil {
			// 远程表格不可用时退回本地存储
			log.Warn().Err(err).Msg("spreadsheet client unavailable, using local storage only")
		} else {
			sheets = client
		}
	}

	questions, visits, err := buildStores(cfg, db.DB, sheets, rec, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build storage chains")
	}

	api, err := handler.NewAPI(db.DB, handler.Dependencies{
		Questions:      questions,
		Visits:         visits,
		Ledgers:        service.NewLedgerStore(cfg.LikeLedgerSizeMB, cfg.LikeLedgerTTL),
		Location:       cfg.Location,
		ActiveWindow:   cfg.ActiveWindow,
		AdminPassword:  cfg.AdminPassword,
		NoticePath:     cfg.NoticePath,
		NoticePassword: cfg.NoticePassword,
		Logger:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build handlers")
	}

	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		Metrics:       rec,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Bool("remote", sheets != nil).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}

// buildStores 组装问题与访问记录的存储链：远程表格（可选）、本地 sqlite、旧版 JSON 文件。
func buildStores(cfg config.AppConfig, gdb *gorm.DB, sheets store.SheetClient, rec metrics.Recorder, log zerolog.Logger) (*store.Chain[db.Question], *store.Chain[db.Visit], error) {
	questionCfg := store.Config[db.Question]{
		Entity:   "questions",
		Local:    store.NewTableBackend[db.Question](gdb, "id asc"),
		Prepare:  service.NormalizeQuestionIDs,
		Observer: rec,
		Logger:   log,
	}
	visitCfg := store.Config[db.Visit]{
		Entity:   "visits",
		Local:    store.NewTableBackend[db.Visit](gdb, "date asc, first_visit asc"),
		Prepare:  service.NormalizeVisits,
		Observer: rec,
		Logger:   log,
	}

	if sheets != nil {
		questionCfg.Remote = store.NewSheetBackend(sheets, cfg.Sheets.QuestionsWorksheet, store.QuestionSchema, cfg.Sheets.Timeout)
		visitCfg.Remote = store.NewSheetBackend(sheets, cfg.Sheets.VisitsWorksheet, store.VisitSchema, cfg.Sheets.Timeout)
	}
	if cfg.QuestionsFile != "" {
		questionCfg.Legacy = store.NewFileBackend(cfg.QuestionsFile, store.QuestionSchema)
	}
	if cfg.VisitsFile != "" {
		visitCfg.Legacy = store.NewFileBackend(cfg.VisitsFile, store.VisitSchema)
	}

	questions, err := store.NewChain(questionCfg)
	if err != nil {
		return nil, nil, err
	}
	visits, err := store.NewChain(visitCfg)
	if err != nil {
		return nil, nil, err
	}
	return questions, visits, nil
}
