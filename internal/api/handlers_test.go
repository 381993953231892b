package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/assets"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/config"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/conversation"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/session"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/storage"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/tutor"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/viewer"
)

type inertScheduler struct{}

func (inertScheduler) Schedule(time.Duration, func()) viewer.Timer { return inertTimer{} }

type inertTimer struct{}

func (inertTimer) Cancel() {}

type stubFetcher struct{}

func (stubFetcher) FetchImage(_ context.Context, url string) (string, error) {
	return "data:image/png;base64," + url, nil
}

type testEnv struct {
	db       *sql.DB
	router   *gin.Engine
	backend  *httptest.Server
	calls    *int32
	lastBody *tutor.Request
	paperID  int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, calls: new(int32), lastBody: &tutor.Request{}}
	env.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(env.calls, 1)
		if err := json.NewDecoder(r.Body).Decode(env.lastBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(tutor.Response{Answer: "start with part (a)"})
	}))
	t.Cleanup(env.backend.Close)

	res, err := db.Exec(
		`INSERT INTO exam_papers (title, document_url, page_image_urls, created_at) VALUES (?, ?, '[]', ?)`,
		"Mathematics Paper 2", "https://cdn.example.com/paper2.pdf", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert paper: %v", err)
	}
	env.paperID, _ = res.LastInsertId()
	if _, err := db.Exec(
		`INSERT INTO questions (exam_paper_id, question_number, ocr_text, image_url, image_urls, marking_scheme_text)
		 VALUES (?, '5', 'question five text', '', '["https://cdn/q5.png"]', 'ms text')`,
		env.paperID,
	); err != nil {
		t.Fatalf("insert question: %v", err)
	}

	store := assets.NewStore(db)
	conversations := conversation.NewStore(db)
	tutorSvc := tutor.NewService(tutor.NewBackendClient(env.backend.URL, "test-token"), conversations)
	viewerCfg := config.ViewerConfig{
		Methods: []config.ViewerMethod{
			{Name: "pdfjs", URLTemplate: "https://v.example.com/?file=%s"},
			{Name: "gview", URLTemplate: "https://g.example.com/?url=%s"},
		},
		MaxAttempts: 4,
	}
	registry := session.NewRegistry(store, stubFetcher{}, conversations, tutorSvc, viewerCfg, inertScheduler{}, "anthropic")

	env.router = gin.New()
	NewHandler(registry, conversations).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) openSession(t *testing.T, client string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/viewer/sessions", gin.H{
		"exam_paper_id": e.paperID,
		"user_id":       1,
		"client":        client,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: status %d body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	return out.SessionID
}

func TestOpenSessionReturnsViewerAndTranscript(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/viewer/sessions", gin.H{
		"exam_paper_id": env.paperID,
		"user_id":       1,
		"client":        "mobile",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		SessionID      string          `json:"session_id"`
		ConversationID int64           `json:"conversation_id"`
		Viewer         viewer.State    `json:"viewer"`
		Transcript     []json.RawMessage `json:"transcript"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID == "" || out.ConversationID <= 0 {
		t.Fatalf("missing identifiers: %+v", out)
	}
	if out.Viewer.Status != viewer.StatusLoading || out.Viewer.Method != "pdfjs" {
		t.Fatalf("viewer state: %+v", out.Viewer)
	}
	if len(out.Transcript) != 0 {
		t.Fatalf("fresh conversation has %d messages", len(out.Transcript))
	}
}

func TestOpenSessionUnknownPaper(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/viewer/sessions", gin.H{
		"exam_paper_id": 9999,
		"user_id":       1,
		"client":        "desktop",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestSendQuestionMessage(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t, "desktop")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/viewer/sessions/%s/messages", id), gin.H{
		"content": "please help with question 5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Mode           string `json:"mode"`
		QuestionNumber string `json:"question_number"`
		Reply          struct {
			Content string `json:"content"`
		} `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Mode != string(tutor.NewQuestionLookup) || out.QuestionNumber != "5" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if out.Reply.Content != "start with part (a)" {
		t.Fatalf("reply = %q", out.Reply.Content)
	}

	if got := atomic.LoadInt32(env.calls); got != 1 {
		t.Fatalf("backend calls = %d", got)
	}
	if !env.lastBody.OptimizedMode || len(env.lastBody.ExamPaperImages) != 1 {
		t.Fatalf("backend payload: %+v", env.lastBody)
	}
	if env.lastBody.QuestionNumber != "5" || env.lastBody.MarkingSchemeText != "ms text" {
		t.Fatalf("backend payload fields: %+v", env.lastBody)
	}

	// Both sides of the exchange are now in the transcript.
	recT := env.do(t, http.MethodGet, fmt.Sprintf("/api/viewer/sessions/%s/messages", id), nil)
	if recT.Code != http.StatusOK {
		t.Fatalf("transcript status %d", recT.Code)
	}
	var transcript struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(recT.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript.Messages) != 2 {
		t.Fatalf("transcript messages = %d, want 2", len(transcript.Messages))
	}
}

func TestFirstHelpMessageSkipsBackend(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t, "desktop")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/viewer/sessions/%s/messages", id), gin.H{
		"content": "help",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Mode != string(tutor.FirstQuestionConfirm) {
		t.Fatalf("mode = %s", out.Mode)
	}
	if got := atomic.LoadInt32(env.calls); got != 0 {
		t.Fatalf("backend called %d times", got)
	}
}

func TestViewerSignalAndRetryFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t, "mobile")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/viewer/sessions/%s/viewer/signal", id), gin.H{"event": "failed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("signal status %d", rec.Code)
	}
	var st viewer.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Method != "gview" || st.AttemptIndex != 1 {
		t.Fatalf("after failure: %+v", st)
	}

	// Retry is rejected until the cycle is exhausted.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/viewer/sessions/%s/viewer/retry", id), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("retry status %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/viewer/sessions/%s/viewer/signal", id), gin.H{"event": "rendered"})
	if rec.Code != http.StatusOK {
		t.Fatalf("signal status %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Status != viewer.StatusLoaded {
		t.Fatalf("after success: %+v", st)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/viewer/sessions/missing/viewer", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t, "desktop")

	rec := env.do(t, http.MethodDelete, "/api/viewer/sessions/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/viewer/sessions/%s/viewer", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d after close", rec.Code)
	}
}
