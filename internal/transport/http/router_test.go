package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/auth"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/infra/memory"
	"dailyquiz-service/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type testServer struct {
	router  *gin.Engine
	tokens  *auth.Tokens
	store   *memory.Store
	bus     *memory.EventBus
	service *app.QuizService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	store := memory.NewStore()
	store.PutProfile(domain.Profile{UserID: "u1", Username: "divine", City: "Mumbai", Following: []string{"u2"}})
	store.PutProfile(domain.Profile{UserID: "u2", Username: "krsna", City: "Delhi"})
	bus := memory.NewEventBus()
	log := logger.NewNop()

	service := app.NewQuizService(app.Deps{
		Bank:  memory.NewQuestionBank(testQuestions()...),
		Store: store,
		Bus:   bus,
		Log:   log,
		Clock: func() time.Time { return now },
		Rand:  rand.NewSource(7),
	})
	tokens := auth.NewTokens("test-secret", time.Hour)
	router := NewRouter(RouterConfig{
		QuizHandler:    NewQuizHandler(service, log),
		WSHandler:      NewWSHandler(service, log),
		Verifier:       tokens,
		Log:            log,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{router: router, tokens: tokens, store: store, bus: bus, service: service}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := s.tokens.Issue(userID)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) today(t *testing.T, userID string) domain.TodayView {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/daily-quiz", userID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("today: status %d body %s", rec.Code, rec.Body.String())
	}
	var view domain.TodayView
	decode(t, rec, &view)
	return view
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestTodayEndpointHidesAnswers(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/daily-quiz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"answer"`) || strings.Contains(rec.Body.String(), `"explanation"`) {
		t.Fatalf("answers leaked: %s", rec.Body.String())
	}
	var view domain.TodayView
	decode(t, rec, &view)
	if len(view.Questions) != domain.QuizSize || view.HasCompleted || view.QuizID == "" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestSubmitFlow(t *testing.T) {
	s := newTestServer(t)
	view := s.today(t, "u1")
	path := "/api/daily-quiz/" + view.QuizID + "/submit"

	if rec := s.do(t, http.MethodPost, path, "", submitBody(true)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodPost, path, "u1", submitBody(true))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	var result domain.SubmissionResult
	decode(t, rec, &result)
	if result.Score != 60 || !result.IsPerfect || result.Streak != 1 || result.TotalXP != 61 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec = s.do(t, http.MethodPost, path, "u1", submitBody(true))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d", rec.Code)
	}
	var envelope ErrorEnvelope
	decode(t, rec, &envelope)
	if envelope.Error.Code != "already_completed" || strings.Contains(rec.Body.String(), "score") {
		t.Fatalf("unexpected rejection body: %s", rec.Body.String())
	}

	if got := s.today(t, "u1"); !got.HasCompleted {
		t.Fatalf("expected hasCompleted for u1")
	}

	rec = s.do(t, http.MethodGet, "/api/daily-quiz/"+view.QuizID+"/result", "u1", nil)
	var reread domain.SubmissionResult
	decode(t, rec, &reread)
	if rec.Code != http.StatusOK || reread.Score != result.Score || reread.TotalXP != result.TotalXP {
		t.Fatalf("unexpected reread %d: %+v", rec.Code, reread)
	}
	if rec := s.do(t, http.MethodGet, "/api/daily-quiz/"+view.QuizID+"/result", "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing attempt, got %d", rec.Code)
	}
}

func TestSubmitAcceptsLooseAnswerTypes(t *testing.T) {
	s := newTestServer(t)
	view := s.today(t, "u1")

	body := map[string]any{"answers": map[string]any{
		"tf":  map[string]any{"answer": true, "timeSpent": 3},
		"mcq": map[string]any{"answer": nil},
	}}
	rec := s.do(t, http.MethodPost, "/api/daily-quiz/"+view.QuizID+"/submit", "u2", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	var result domain.SubmissionResult
	decode(t, rec, &result)
	if result.Score != 10 || result.CorrectCount != 1 {
		t.Fatalf("expected boolean answer accepted, got %+v", result)
	}
}

func TestSubmitErrors(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, http.MethodPost, "/api/daily-quiz/missing/submit", "u1", submitBody(false)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quiz, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/daily-quiz/x/submit", strings.NewReader("{"))
	token, _ := s.tokens.Issue("u1")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/daily-quiz/x/submit", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	s := newTestServer(t)
	view := s.today(t, "u1")
	s.do(t, http.MethodPost, "/api/daily-quiz/"+view.QuizID+"/submit", "u1", submitBody(false))
	s.do(t, http.MethodPost, "/api/daily-quiz/"+view.QuizID+"/submit", "u2", submitBody(true))
	s.do(t, http.MethodPost, "/api/daily-quiz/"+view.QuizID+"/submit", "u3", submitBody(true))

	rec := s.do(t, http.MethodGet, "/api/daily-quiz/leaderboard?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var lb domain.Leaderboard
	decode(t, rec, &lb)
	if lb.Scope != domain.ScopeGlobal || len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[0].Username != "krsna" {
		t.Fatalf("unexpected global board: %+v", lb)
	}

	rec = s.do(t, http.MethodGet, "/api/daily-quiz/leaderboard?scope=friends", "u1", nil)
	decode(t, rec, &lb)
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[1].UserID != "u1" {
		t.Fatalf("unexpected friends board: %+v", lb.Entries)
	}

	rec = s.do(t, http.MethodGet, "/api/daily-quiz/leaderboard?scope=city", "u3", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"leaderboard":[]`) {
		t.Fatalf("expected empty city board, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(t, http.MethodGet, "/api/daily-quiz/leaderboard?scope=friends", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous friends board, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/daily-quiz/leaderboard?scope=galaxy", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", rec.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrapped: %w", domain.ErrAlreadyCompleted), http.StatusConflict},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrQuizExpired, http.StatusGone},
		{domain.ErrInsufficientContent, http.StatusServiceUnavailable},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if status, _ := statusFor(tc.err); status != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, status)
		}
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := app.NewQuizService(app.Deps{
		Bank:  brokenBank{},
		Store: memory.NewStore(),
		Log:   logger.NewNop(),
	})
	router := NewRouter(RouterConfig{QuizHandler: NewQuizHandler(service, logger.NewNop()), Log: logger.NewNop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/daily-quiz", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	want := `{"error":{"message":"server error","code":"internal"}}`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Fatalf("expected opaque body, got %s", rec.Body.String())
	}
}

func TestLeaderboardWebSocketFeed(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.service.RunFeed(ctx, s.bus) }()

	server := httptest.NewServer(s.router)
	defer server.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.bus.Listeners() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("feed never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readLeaderboard(t, conn)
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial board, got %+v", initial.Entries)
	}

	view := s.today(t, "u1")
	if rec := s.do(t, http.MethodPost, "/api/daily-quiz/"+view.QuizID+"/submit", "u1", submitBody(true)); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d", rec.Code)
	}
	update := readLeaderboard(t, conn)
	if len(update.Entries) != 1 || update.Entries[0].UserID != "u1" || update.Entries[0].MaxScore != 60 {
		t.Fatalf("unexpected pushed board: %+v", update.Entries)
	}
}

func readLeaderboard(t *testing.T, conn *websocket.Conn) domain.Leaderboard {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string             `json:"type"`
		Payload domain.Leaderboard `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func submitBody(allCorrect bool) map[string]any {
	if !allCorrect {
		return map[string]any{"answers": map[string]any{
			"mcq": map[string]any{"answer": "KRSNA", "timeSpent": 5},
		}}
	}
	return map[string]any{"answers": map[string]any{
		"mcq":   map[string]any{"answer": "KRSNA", "timeSpent": 5},
		"tf":    map[string]any{"answer": "true", "timeSpent": 2},
		"short": map[string]any{"answer": "sez", "timeSpent": 8},
		"audio": map[string]any{"answer": "Raftaar", "timeSpent": 4},
		"mcq2":  map[string]any{"answer": "Mass Appeal India", "timeSpent": 3},
	}}
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: "mcq", Kind: domain.KindMultipleChoice, Prompt: "Who released Yours Truly?", Options: []string{"KRSNA", "DIVINE"}, Answer: domain.SingleAnswer("KRSNA"), Explanation: "It was KRSNA.", IsActive: true},
		{ID: "tf", Kind: domain.KindTrueFalse, Prompt: "Gully Boy was inspired by DIVINE.", Options: []string{"True", "False"}, Answer: domain.SingleAnswer("True"), IsActive: true},
		{ID: "short", Kind: domain.KindShortAnswer, Prompt: "Seedhe Maut's producer?", Answer: domain.AnswerSet("Sez", "Sez on the Beat"), IsActive: true},
		{ID: "audio", Kind: domain.KindAudioMultipleChoice, Prompt: "Name the artist.", Options: []string{"Emiway", "Raftaar"}, Answer: domain.SingleAnswer("Raftaar"), IsBonus: true, IsActive: true},
		{ID: "mcq2", Kind: domain.KindMultipleChoice, Prompt: "Which label signed DIVINE?", Options: []string{"Gully Gang", "Mass Appeal India"}, Answer: domain.SingleAnswer("Mass Appeal India"), IsActive: true},
	}
}

type brokenBank struct{}

func (brokenBank) ActiveQuestionIDs(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (brokenBank) QuestionsByID(context.Context, []string) (map[string]domain.Question, error) {
	return nil, errors.New("connection refused")
}
