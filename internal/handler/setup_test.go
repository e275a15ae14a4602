package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAdminPassword = "test-password"

var testNow = time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)

type brokenBackend[T any] struct{}

func (brokenBackend[T]) Name() string { return "broken" }

func (brokenBackend[T]) Read(context.Context) ([]T, error) { return nil, errors.New("read failed") }

func (brokenBackend[T]) Write(context.Context, []T) error { return errors.New("write failed") }

type handlerEnv struct {
	t         *testing.T
	engine    *gin.Engine
	api       *API
	gdb       *gorm.DB
	questions *store.TableBackend[db.Question]
	visits    *store.TableBackend[db.Visit]
	cookies   map[string]*http.Cookie
}

type envOptions struct {
	remote      store.Backend[db.Question]
	localBroken bool
	noticePath  string
	noticeLock  string
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func newHandlerEnv(t *testing.T, opts envOptions) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := setupHandlerTestDB(t)
	questionTable := store.NewTableBackend[db.Question](gdb, "id asc")
	visitTable := store.NewTableBackend[db.Visit](gdb, "date asc, first_visit asc")

	questionCfg := store.Config[db.Question]{
		Entity:  "questions",
		Remote:  opts.remote,
		Local:   questionTable,
		Prepare: service.NormalizeQuestionIDs,
		Logger:  zerolog.Nop(),
	}
	if opts.localBroken {
		questionCfg.Local = brokenBackend[db.Question]{}
	}
	questions, err := store.NewChain(questionCfg)
	if err != nil {
		t.Fatalf("failed to build question chain: %v", err)
	}
	visits, err := store.NewChain(store.Config[db.Visit]{
		Entity:  "visits",
		Local:   visitTable,
		Prepare: service.NormalizeVisits,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to build visit chain: %v", err)
	}

	api, err := NewAPI(gdb, Dependencies{
		Questions:      questions,
		Visits:         visits,
		Ledgers:        service.NewLedgerStore(1, time.Hour),
		Location:       time.UTC,
		AdminPassword:  testAdminPassword,
		NoticePath:     opts.noticePath,
		NoticePassword: opts.noticeLock,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}
	api.WithClock(func() time.Time { return testNow })

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret-key"))))
	r.SetHTMLTemplate(Templates())

	r.GET("/healthz", api.HealthCheck)
	r.GET("/notice", api.ShowNotice)
	r.POST("/notice/unlock", api.UnlockNotice)
	r.GET("/api/questions", api.ListQuestions)
	r.POST("/api/questions", api.SubmitQuestion)
	r.POST("/api/questions/:id/like", api.LikeQuestion)
	r.POST("/admin/login", api.Login)
	r.POST("/admin/logout", api.Logout)

	auth := r.Group("/admin/api", AuthRequired())
	auth.GET("/questions", api.AdminListQuestions)
	auth.DELETE("/questions", api.AdminDeleteAllQuestions)
	auth.PUT("/questions/:id", api.AdminUpdateQuestion)
	auth.DELETE("/questions/:id", api.AdminDeleteQuestion)
	auth.POST("/questions/purge-below-likes", api.PurgeBelowLikes)
	auth.POST("/questions/purge-older-than", api.PurgeOlderThan)
	auth.POST("/questions/reset-likes", api.ResetLikes)
	auth.GET("/stats/questions", api.QuestionStats)
	auth.GET("/stats/visits", api.VisitStats)
	auth.POST("/visits/reset", api.ResetVisits)
	auth.GET("/export/csv", api.ExportCSV)
	auth.GET("/export/xlsx", api.ExportExcel)
	auth.GET("/storage", api.StorageStatus)

	return &handlerEnv{
		t:         t,
		engine:    r,
		api:       api,
		gdb:       gdb,
		questions: questionTable,
		visits:    visitTable,
		cookies:   map[string]*http.Cookie{},
	}
}

func (e *handlerEnv) seed(questions ...db.Question) {
	e.t.Helper()
	if err := e.questions.Write(context.Background(), questions); err != nil {
		e.t.Fatalf("failed to seed questions: %v", err)
	}
}

func (e *handlerEnv) stored() []db.Question {
	e.t.Helper()
	rows, err := e.questions.Read(context.Background())
	if err != nil {
		e.t.Fatalf("failed to read questions: %v", err)
	}
	return rows
}

// do 发送请求并像浏览器一样保存返回的 cookie。
func (e *handlerEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		e.cookies[c.Name] = c
	}
	return w
}

func (e *handlerEnv) login() {
	e.t.Helper()
	if w := e.do(http.MethodPost, "/admin/login", gin.H{"password": testAdminPassword}); w.Code != http.StatusOK {
		e.t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func sampleQuestions() []db.Question {
	return []db.Question{
		{ID: 1, Author: "김철수", Body: "발표 자료 공유되나요?", Timestamp: "2025-03-01 09:00:00", Likes: 5},
		{ID: 2, Author: db.AnonymousAuthor, Body: "다음 세션은 언제인가요?", Timestamp: "2025-03-01 13:00:00", Likes: 0},
		{ID: 3, Author: "박영희", Body: "질의응답 시간은?", Timestamp: "2025-03-01 14:00:00", Likes: 10},
	}
}
