package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/handler"
	"github.com/questionbox/internal/metrics"
	"github.com/questionbox/internal/router"
	"github.com/questionbox/internal/service"
	"github.com/questionbox/internal/store"
	"github.com/rs/zerolog"
)

const adminPassword = "e2e-secret"

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler) *localClient {
	jar, _ := cookiejar.New(nil)
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	c.jar.SetCookies(req.URL, resp.Cookies())
	return resp, nil
}

// memorySheet 是内存中的远程表格，可以切换为读写失败。
type memorySheet struct {
	mu         sync.Mutex
	rows       map[string][][]string
	failReads  bool
	failWrites bool
}

func (m *memorySheet) ReadRows(_ context.Context, worksheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errors.New("sheet read quota exceeded")
	}
	return m.rows[worksheet], nil
}

func (m *memorySheet) WriteRows(_ context.Context, worksheet string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("sheet write quota exceeded")
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			data, _ := json.Marshal(cell)
			cells[j] = strings.Trim(string(data), `"`)
		}
		out[i] = cells
	}
	m.rows[worksheet] = out
	return nil
}

func (m *memorySheet) set(failReads, failWrites bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = failReads
	m.failWrites = failWrites
}

func (m *memorySheet) rowCount(worksheet string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[worksheet])
}

type e2eSuite struct {
	engine        http.Handler
	public        httpClient
	admin         httpClient
	baseURL       string
	sheet         *memorySheet
	questionsFile string
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	if err := db.Init(filepath.Join(dir, "questionbox.db")); err != nil {
		t.Fatalf("failed to init database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	questionsFile := filepath.Join(dir, "questions.json")
	legacy := `[
  {"id": 1, "name": "김철수", "question": "기존 질문", "timestamp": "2025-01-01 10:00:00", "likes": 3},
  {"id": 1, "name": "", "question": "중복 번호 질문", "likes": "2"}
]`
	if err := os.WriteFile(questionsFile, []byte(legacy), 0o644); err != nil {
		t.Fatalf("failed to write legacy file: %v", err)
	}

	sheet := &memorySheet{rows: map[string][][]string{}}
	rec := metrics.New(true)
	log := zerolog.Nop()

	questions, err := store.NewChain(store.Config[db.Question]{
		Entity:   "questions",
		Remote:   store.NewSheetBackend(sheet, "questions", store.QuestionSchema, time.Second),
		Local:    store.NewTableBackend[db.Question](db.DB, "id asc"),
		Legacy:   store.NewFileBackend(questionsFile, store.QuestionSchema),
		Prepare:  service.NormalizeQuestionIDs,
		Observer: rec,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("failed to build question chain: %v", err)
	}
	visits, err := store.NewChain(store.Config[db.Visit]{
		Entity:   "visits",
		Remote:   store.NewSheetBackend(sheet, "stats", store.VisitSchema, time.Second),
		Local:    store.NewTableBackend[db.Visit](db.DB, "date asc, first_visit asc"),
		Legacy:   store.NewFileBackend(filepath.Join(dir, "stats.json"), store.VisitSchema),
		Prepare:  service.NormalizeVisits,
		Observer: rec,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("failed to build visit chain: %v", err)
	}

	api, err := handler.NewAPI(db.DB, handler.Dependencies{
		Questions:     questions,
		Visits:        visits,
		Ledgers:       service.NewLedgerStore(1, time.Hour),
		Location:      time.UTC,
		AdminPassword: adminPassword,
		Logger:        log,
	})
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}

	engine := router.SetupRouter(api, router.Options{
		SessionSecret: "e2e-session-secret",
		Metrics:       rec,
		Logger:        log,
	})

	return &e2eSuite{
		engine:        engine,
		public:        newLocalClient(engine),
		admin:         newLocalClient(engine),
		baseURL:       "http://example.test",
		sheet:         sheet,
		questionsFile: questionsFile,
	}
}

type questionList struct {
	Questions []db.Question       `json:"questions"`
	Summary   service.LikeSummary `json:"summary"`
	LikedIDs  []int               `json:"likedIds"`
}

func TestE2E_QuestionLifecycle(t *testing.T) {
	s := newE2ESuite(t)

	t.Run("legacy file is migrated on first load", func(t *testing.T) {
		var list questionList
		resp := s.mustRequest(t, s.public, http.MethodGet, "/api/questions?sort=oldest", nil)
		decodeJSON(t, resp, &list)

		if len(list.Questions) != 2 {
			t.Fatalf("expected 2 migrated questions, got %+v", list.Questions)
		}
		if list.Questions[0].ID != 1 || list.Questions[1].ID != 2 {
			t.Fatalf("expected normalized ids 1,2, got %+v", list.Questions)
		}
		if list.Questions[1].Author != db.AnonymousAuthor || list.Questions[1].Likes != 2 {
			t.Fatalf("expected coerced legacy record, got %+v", list.Questions[1])
		}
		if list.Summary.TotalLikes != 5 {
			t.Fatalf("expected 5 total likes, got %+v", list.Summary)
		}
	})

	t.Run("submit assigns next id and writes every tier", func(t *testing.T) {
		resp := s.mustRequestJSON(t, s.public, http.MethodPost, "/api/questions", map[string]interface{}{"question": "테스트 질문"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp))
		}

		var created struct {
			Question db.Question `json:"question"`
		}
		decodeJSON(t, resp, &created)
		if created.Question.ID != 3 || created.Question.Author != db.AnonymousAuthor || created.Question.Likes != 0 || created.Question.Timestamp == "" {
			t.Fatalf("unexpected created question: %+v", created.Question)
		}

		if rows := s.sheet.rowCount("questions"); rows != 4 {
			t.Fatalf("expected header plus 3 rows in sheet, got %d", rows)
		}
		data, err := os.ReadFile(s.questionsFile)
		if err != nil || !strings.Contains(string(data), "테스트 질문") {
			t.Fatalf("expected legacy file mirror to contain new question: %v", err)
		}
	})

	t.Run("remote read failure falls back to local", func(t *testing.T) {
		s.sheet.set(true, false)
		defer s.sheet.set(false, false)

		var list questionList
		decodeJSON(t, s.mustRequest(t, s.public, http.MethodGet, "/api/questions", nil), &list)
		if len(list.Questions) != 3 {
			t.Fatalf("expected local questions, got %+v", list.Questions)
		}
	})

	t.Run("like counts once per session", func(t *testing.T) {
		resp := s.mustRequest(t, s.public, http.MethodPost, "/api/questions/3/like", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		resp = s.mustRequest(t, s.public, http.MethodPost, "/api/questions/3/like", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}

		var list questionList
		decodeJSON(t, s.mustRequest(t, s.public, http.MethodGet, "/api/questions?sort=oldest", nil), &list)
		if list.Questions[2].Likes != 1 || len(list.LikedIDs) != 1 {
			t.Fatalf("expected a single like, got %+v liked=%v", list.Questions[2], list.LikedIDs)
		}
	})

	t.Run("admin operations", func(t *testing.T) {
		resp := s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/questions", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 before login, got %d", resp.StatusCode)
		}

		resp = s.mustRequestJSON(t, s.admin, http.MethodPost, "/admin/login", map[string]interface{}{"password": adminPassword})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login failed: %d", resp.StatusCode)
		}

		var deleted struct {
			Warnings []string `json:"warnings"`
		}
		decodeJSON(t, s.mustRequest(t, s.admin, http.MethodDelete, "/admin/api/questions/1", nil), &deleted)
		if len(deleted.Warnings) != 0 {
			t.Fatalf("expected no warnings, got %v", deleted.Warnings)
		}

		var list questionList
		decodeJSON(t, s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/questions?sort=oldest", nil), &list)
		if len(list.Questions) != 2 || list.Questions[0].ID != 1 || list.Questions[1].ID != 2 || list.Questions[1].Body != "테스트 질문" {
			t.Fatalf("expected renumbered questions, got %+v", list.Questions)
		}

		s.sheet.set(false, true)
		var reset struct {
			Warnings []string `json:"warnings"`
		}
		decodeJSON(t, s.mustRequest(t, s.admin, http.MethodPost, "/admin/api/questions/reset-likes", nil), &reset)
		s.sheet.set(false, false)
		if len(reset.Warnings) != 1 || !strings.Contains(reset.Warnings[0], "sheet write quota exceeded") {
			t.Fatalf("expected sheet warning, got %v", reset.Warnings)
		}

		var visits service.VisitOverview
		decodeJSON(t, s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/stats/visits", nil), &visits)
		if visits.Today.UniqueVisitors != 1 || visits.AllTime.TotalVisits != 3 {
			t.Fatalf("unexpected visit stats: %+v", visits)
		}

		resp = s.mustRequest(t, s.admin, http.MethodGet, "/admin/api/export/csv", nil)
		if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Disposition"), `attachment; filename="questions_`) {
			t.Fatalf("unexpected export response %d %q", resp.StatusCode, resp.Header.Get("Content-Disposition"))
		}
	})

	t.Run("metrics expose backend outcomes", func(t *testing.T) {
		body := readBody(t, s.mustRequest(t, s.public, http.MethodGet, "/metrics", nil))
		want := `questionbox_backend_operations_total{backend="sheet",entity="questions",op="read",outcome="error"} 1`
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	})
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader) *http.Response {
	t.Helper()
	return s.mustRequestWithHeaders(t, client, method, path, body, nil)
}

func (s *e2eSuite) mustRequestWithHeaders(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequestWithHeaders(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
