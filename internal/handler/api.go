package handler

import (
	"errors"
	"time"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Dependencies 汇总构建 API 所需的存储链与配置。
type Dependencies struct {
	Questions     *store.Chain[db.Question]
	Visits        *store.Chain[db.Visit]
	Ledgers       *service.LedgerStore
	Location      *time.Location
	ActiveWindow  time.Duration
	AdminPassword string
	NoticePath    string

	// NoticePassword 非空时公告页需要先输入该密码。
	NoticePassword string
	Logger         zerolog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db            *gorm.DB
	questions     *service.QuestionService
	engagement    *service.EngagementService
	visits        *service.VisitService
	exports       *service.ExportService
	ledgers       *service.LedgerStore
	questionChain *store.Chain[db.Question]
	visitChain    *store.Chain[db.Visit]
	adminHash     []byte
	noticeHash    []byte
	noticePath    string
	now           func() time.Time
	log           zerolog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, deps Dependencies) (*API, error) {
	if deps.Questions == nil || deps.Visits == nil {
		return nil, errors.New("question and visit stores are required")
	}
	if deps.AdminPassword == "" {
		return nil, errors.New("admin password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(deps.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var noticeHash []byte
	if deps.NoticePassword != "" {
		noticeHash, err = bcrypt.GenerateFromPassword([]byte(deps.NoticePassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}

	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	ledgers := deps.Ledgers
	if ledgers == nil {
		ledgers = service.NewLedgerStore(8, 24*time.Hour)
	}

	// 问题的提交、删除与点赞共用同一个 Records，以串行化写入。
	questionRecords := service.NewRecords[db.Question](deps.Questions)
	visitRecords := service.NewRecords[db.Visit](deps.Visits)

	return &API{
		db:            gdb,
		questions:     service.NewQuestionService(questionRecords, loc),
		engagement:    service.NewEngagementService(questionRecords),
		visits:        service.NewVisitService(visitRecords, loc).WithActiveWindow(deps.ActiveWindow),
		exports:       service.NewExportService(loc),
		ledgers:       ledgers,
		questionChain: deps.Questions,
		visitChain:    deps.Visits,
		adminHash:     hash,
		noticeHash:    noticeHash,
		noticePath:    deps.NoticePath,
		now:           time.Now,
		log:           deps.Logger.With().Str("component", "handler").Logger(),
	}, nil
}

// WithClock 固定所有服务使用的当前时间，仅用于测试。
func (a *API) WithClock(now func() time.Time) *API {
	if now == nil {
		return a
	}
	a.now = now
	a.questions.WithClock(now)
	a.visits.WithClock(now)
	a.exports.WithClock(now)
	return a
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
