package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
	apperrors "github.com/yanqian/offlineqa/pkg/errors"
)

func TestRouter_ChatSuccess(t *testing.T) {
	confidence := 0.9
	chat := &stubConversation{
		replyFn: func(_ context.Context, req conversation.Request) (conversation.Response, error) {
			require.Equal(t, "What is PM-KISAN?", req.Query)
			require.Equal(t, "hi", req.Language)
			return conversation.Response{SessionID: "s1", Answer: "A scheme.", Source: conversation.SourceRetrieval, Confidence: &confidence}, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/chat", `{"query":"What is PM-KISAN?","language":"hi"}`, newRouterUnderTest(t, &stubBot{}, chat))
	require.Equal(t, http.StatusOK, rec.Code)

	var got conversation.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, "A scheme.", got.Answer)
	require.InDelta(t, 0.9, *got.Confidence, 1e-9)
}

func TestRouter_ChatInvalidJSON(t *testing.T) {
	rec := performRequest(http.MethodPost, "/api/v1/chat", `{"query":123}`, newRouterUnderTest(t, &stubBot{}, &stubConversation{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_ChatInvalidInput(t *testing.T) {
	chat := &stubConversation{
		replyFn: func(context.Context, conversation.Request) (conversation.Response, error) {
			return conversation.Response{}, apperrors.Wrap("invalid_input", "query cannot be empty", nil)
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/chat", `{"query":""}`, newRouterUnderTest(t, &stubBot{}, chat))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_input", errBody["error"]["code"])
	require.Contains(t, errBody["error"]["message"], "query cannot be empty")
}

func TestRouter_AnswerUsesDefaultThreshold(t *testing.T) {
	bot := &stubBot{
		getAnswerFn: func(_ context.Context, query string, threshold float64) (string, error) {
			require.Equal(t, "wheat", query)
			require.Equal(t, 0.3, threshold)
			return "Sow in November.", nil
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/answer", `{"query":"wheat"}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"answer":"Sow in November."}`, rec.Body.String())
}

func TestRouter_AnswerExplicitThreshold(t *testing.T) {
	bot := &stubBot{
		getAnswerFn: func(_ context.Context, _ string, threshold float64) (string, error) {
			require.Equal(t, 0.8, threshold)
			return "ok", nil
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/answer", `{"query":"wheat","threshold":0.8}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_SearchEmbeddingErrorIsBadGateway(t *testing.T) {
	bot := &stubBot{
		searchFn: func(context.Context, string, int) ([]qa.SearchResult, error) {
			return nil, apperrors.Wrap("embedding_error", "embedding query failed", nil)
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/search", `{"query":"wheat","topK":2}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "embedding_error", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_SearchReturnsResults(t *testing.T) {
	bot := &stubBot{
		searchFn: func(_ context.Context, _ string, topK int) ([]qa.SearchResult, error) {
			require.Equal(t, 3, topK)
			return []qa.SearchResult{{Position: 1, Question: "q", Answer: "a", Confidence: 0.5, Distance: 1}}, nil
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/search", `{"query":"wheat"}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []qa.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	require.Equal(t, "q", body.Results[0].Question)
}

func TestRouter_SearchRetriesServerErrors(t *testing.T) {
	calls := 0
	bot := &stubBot{
		searchFn: func(context.Context, string, int) ([]qa.SearchResult, error) {
			calls++
			if calls == 1 {
				return nil, apperrors.Wrap("index_error", "similarity search failed", nil)
			}
			return nil, nil
		},
	}
	server := newRouterUnderTest(t, bot, &stubConversation{}, func(cfg *config.Config) {
		cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 2, BaseBackoff: time.Millisecond}
	})
	rec := performRequest(http.MethodPost, "/api/v1/search", `{"query":"wheat"}`, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, calls)
	require.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestRouter_SessionNotFound(t *testing.T) {
	chat := &stubConversation{
		historyFn: func(_ context.Context, id string) (conversation.Session, error) {
			require.Equal(t, "abc", id)
			return conversation.Session{}, apperrors.Wrap("not_found", "session not found", nil)
		},
	}
	rec := performRequest(http.MethodGet, "/api/v1/sessions/abc/messages", "", newRouterUnderTest(t, &stubBot{}, chat))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ClearSession(t *testing.T) {
	chat := &stubConversation{
		clearFn: func(_ context.Context, id string) (conversation.Session, error) {
			return conversation.Session{ID: id, Messages: []conversation.Message{{Role: conversation.RoleAssistant, Content: "hello"}}}, nil
		},
	}
	rec := performRequest(http.MethodDelete, "/api/v1/sessions/abc", "", newRouterUnderTest(t, &stubBot{}, chat))
	require.Equal(t, http.StatusOK, rec.Code)

	var got conversation.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "abc", got.ID)
	require.Len(t, got.Messages, 1)
}

func TestRouter_StatsAndHealth(t *testing.T) {
	bot := &stubBot{stats: qa.Stats{Records: 42, Dimensions: 384, Model: "feature-hash-v1", Backend: "memory"}}
	server := newRouterUnderTest(t, bot, &stubConversation{})

	rec := performRequest(http.MethodGet, "/api/v1/stats", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats qa.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 42, stats.Records)

	rec = performRequest(http.MethodGet, "/healthz", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	server := newRouterUnderTest(t, &stubBot{}, &stubConversation{}, func(cfg *config.Config) {
		cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	})
	require.Equal(t, http.StatusOK, performRequest(http.MethodGet, "/api/v1/trending", "", server).Code)

	rec := performRequest(http.MethodGet, "/api/v1/trending", "", server)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestIPRateLimiterRefills(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1})
	now := time.Now()
	_, ok := limiter.allow("1.2.3.4", now)
	require.True(t, ok)
	wait, ok := limiter.allow("1.2.3.4", now)
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
	_, ok = limiter.allow("1.2.3.4", now.Add(time.Second))
	require.True(t, ok)
}

func TestRouter_AskOmitsConfidenceUnlessRequested(t *testing.T) {
	bot := &stubBot{chatFn: func(_ context.Context, query string, showConfidence bool) (qa.ChatResponse, error) {
		require.Equal(t, "What is PM-KISAN?", query)
		if !showConfidence {
			return qa.ChatResponse{Answer: "A scheme.", Details: mo.None[qa.MatchDetails]()}, nil
		}
		return qa.ChatResponse{
			Answer:  "A scheme.",
			Details: mo.Some(qa.MatchDetails{Confidence: 0.5, MatchedQuestion: mo.Some("What is PM-KISAN?")}),
		}, nil
	}}
	server := newRouterUnderTest(t, bot, &stubConversation{})

	rec := performRequest(http.MethodPost, "/api/v1/ask", `{"query":"What is PM-KISAN?"}`, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"answer":"A scheme."}`, rec.Body.String())

	rec = performRequest(http.MethodPost, "/api/v1/ask", `{"query":"What is PM-KISAN?","showConfidence":true}`, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"answer":"A scheme.","confidence":0.5,"matchedQuestion":"What is PM-KISAN?"}`, rec.Body.String())
}

func TestRouter_AskEmptyDatasetReportsNullMatch(t *testing.T) {
	bot := &stubBot{chatFn: func(context.Context, string, bool) (qa.ChatResponse, error) {
		return qa.ChatResponse{
			Answer:  qa.FallbackAnswer,
			Details: mo.Some(qa.MatchDetails{Confidence: 0, MatchedQuestion: mo.None[string]()}),
		}, nil
	}}
	rec := performRequest(http.MethodPost, "/api/v1/ask", `{"query":"anything"}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"answer":"`+qa.FallbackAnswer+`","confidence":0,"matchedQuestion":null}`, rec.Body.String())
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	server := newRouterUnderTest(t, &stubBot{}, &stubConversation{}, func(cfg *config.Config) {
		cfg.HTTP.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUncodedErrorIsHidden(t *testing.T) {
	bot := &stubBot{searchFn: func(context.Context, string, int) ([]qa.SearchResult, error) {
		return nil, errors.New("disk on fire")
	}}
	rec := performRequest(http.MethodPost, "/api/v1/search", `{"query":"wheat"}`, newRouterUnderTest(t, bot, &stubConversation{}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "internal_error", body["error"]["code"])
	require.Equal(t, "something went wrong", body["error"]["message"])
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, bot qa.Chatbot, chat conversation.Service, mutators ...func(*config.Config)) *http.Server {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Chat: config.ChatConfig{TopK: 3},
	}
	for _, mutate := range mutators {
		mutate(cfg)
	}
	return NewRouter(cfg, NewHandler(cfg, bot, chat, newTestLogger()))
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubBot struct {
	searchFn    func(ctx context.Context, query string, topK int) ([]qa.SearchResult, error)
	getAnswerFn func(ctx context.Context, query string, threshold float64) (string, error)
	chatFn      func(ctx context.Context, query string, showConfidence bool) (qa.ChatResponse, error)
	stats       qa.Stats
}

func (s *stubBot) Search(ctx context.Context, query string, topK int) ([]qa.SearchResult, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, query, topK)
	}
	return nil, nil
}

func (s *stubBot) GetAnswer(ctx context.Context, query string, threshold float64) (string, error) {
	if s.getAnswerFn != nil {
		return s.getAnswerFn(ctx, query, threshold)
	}
	return qa.FallbackAnswer, nil
}

func (s *stubBot) Chat(ctx context.Context, query string, showConfidence bool) (qa.ChatResponse, error) {
	if s.chatFn != nil {
		return s.chatFn(ctx, query, showConfidence)
	}
	return qa.ChatResponse{Answer: qa.FallbackAnswer}, nil
}

func (s *stubBot) Stats() qa.Stats    { return s.stats }
func (s *stubBot) Threshold() float64 { return 0.3 }

type stubConversation struct {
	replyFn   func(ctx context.Context, req conversation.Request) (conversation.Response, error)
	historyFn func(ctx context.Context, id string) (conversation.Session, error)
	clearFn   func(ctx context.Context, id string) (conversation.Session, error)
}

func (s *stubConversation) Reply(ctx context.Context, req conversation.Request) (conversation.Response, error) {
	if s.replyFn != nil {
		return s.replyFn(ctx, req)
	}
	return conversation.Response{}, nil
}

func (s *stubConversation) History(ctx context.Context, id string) (conversation.Session, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, id)
	}
	return conversation.Session{ID: id}, nil
}

func (s *stubConversation) Clear(ctx context.Context, id string) (conversation.Session, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, id)
	}
	return conversation.Session{ID: id}, nil
}

func (s *stubConversation) Trending(context.Context) ([]conversation.TrendingQuery, error) {
	return nil, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
