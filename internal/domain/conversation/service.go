package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/domain/smalltalk"
	apperrors "github.com/yanqian/offlineqa/pkg/errors"
	"github.com/yanqian/offlineqa/pkg/util"
)

// Service drives the chat flow shared by the HTTP and terminal front ends.
type Service interface {
	Reply(ctx context.Context, req Request) (Response, error)
	History(ctx context.Context, sessionID string) (Session, error)
	Clear(ctx context.Context, sessionID string) (Session, error)
	Trending(ctx context.Context) ([]TrendingQuery, error)
}

type answerer interface {
	Chat(ctx context.Context, query string, showConfidence bool) (qa.ChatResponse, error)
	Threshold() float64
}

type service struct {
	cfg    Config
	bot    answerer
	store  Store
	newID  func() string
	logger *slog.Logger
}

// NewService wires the conversation flow.
func NewService(cfg Config, bot answerer, store Store, logger *slog.Logger) Service {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = bot.Threshold()
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}
	if cfg.TopRecommendations <= 0 {
		cfg.TopRecommendations = 5
	}
	return &service{
		cfg:    cfg,
		bot:    bot,
		store:  store,
		newID:  uuid.NewString,
		logger: logger.With("component", "conversation.service"),
	}
}

func (s *service) Reply(ctx context.Context, req Request) (Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, apperrors.Wrap("invalid_input", "query cannot be empty", nil)
	}
	lang := req.Language
	if strings.TrimSpace(lang) == "" {
		lang = s.cfg.DefaultLanguage
	}

	sessionID := s.ensureSession(ctx, strings.TrimSpace(req.SessionID))
	resp := Response{SessionID: sessionID}

	if reply, ok := smalltalk.Handle(query, smalltalk.ParseLanguage(lang)); ok {
		resp.Answer = reply
		resp.Source = SourceSmalltalk
	} else {
		chat, err := s.bot.Chat(ctx, query, true)
		if err != nil {
			return Response{}, err
		}
		resp.Answer = chat.Answer
		resp.Source = SourceRetrieval
		if confidence, ok := chat.Confidence(); ok {
			resp.Confidence = &confidence
			if confidence < s.cfg.ConfidenceThreshold {
				resp.LowConfidence = true
				resp.Warning = lowConfidenceWarning(confidence)
			}
		}
		if matched, ok := chat.MatchedQuestion(); ok {
			resp.MatchedQuestion = matched
		}
		if err := s.store.IncrementQuery(ctx, normalizeQuery(query), query); err != nil {
			s.logger.Warn("trending increment failed", "error", err)
		}
	}

	now := util.NowUTC()
	turn := []Message{
		{Role: RoleUser, Content: query, CreatedAt: now},
		{Role: RoleAssistant, Content: resp.Answer, Source: resp.Source, Confidence: resp.Confidence, CreatedAt: now},
	}
	if err := s.store.Append(ctx, sessionID, turn, s.cfg.SessionTTL, s.cfg.MaxMessages); err != nil {
		s.logger.Warn("session append failed", "session_id", sessionID, "error", err)
	}

	recs, err := s.store.TopQueries(ctx, s.cfg.TopRecommendations)
	if err != nil {
		s.logger.Warn("trending fetch failed", "error", err)
		recs = nil
	}
	resp.Recommendations = recs

	s.logger.Info("reply served",
		"session_id", sessionID,
		"source", resp.Source,
		"low_confidence", resp.LowConfidence,
	)
	return resp, nil
}

func (s *service) History(ctx context.Context, sessionID string) (Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, apperrors.Wrap("invalid_input", "session id cannot be empty", nil)
	}
	msgs, ok, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return Session{}, apperrors.Wrap("session_error", "failed to load session", err)
	}
	if !ok {
		return Session{}, apperrors.Wrap("not_found", "session not found", nil)
	}
	return Session{ID: sessionID, Messages: msgs}, nil
}

// Clear drops the transcript and starts over with the short greeting.
func (s *service) Clear(ctx context.Context, sessionID string) (Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, apperrors.Wrap("invalid_input", "session id cannot be empty", nil)
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return Session{}, apperrors.Wrap("session_error", "failed to clear session", err)
	}
	greeting := []Message{{Role: RoleAssistant, Content: clearedMessage, Source: SourceWelcome, CreatedAt: util.NowUTC()}}
	if err := s.store.Append(ctx, sessionID, greeting, s.cfg.SessionTTL, s.cfg.MaxMessages); err != nil {
		return Session{}, apperrors.Wrap("session_error", "failed to reset session", err)
	}
	return Session{ID: sessionID, Messages: greeting}, nil
}

func (s *service) Trending(ctx context.Context) ([]TrendingQuery, error) {
	recs, err := s.store.TopQueries(ctx, s.cfg.TopRecommendations)
	if err != nil {
		return nil, apperrors.Wrap("session_error", "failed to load trending queries", err)
	}
	return recs, nil
}

// ensureSession returns an existing session id or opens a new session seeded
// with the welcome message. Unknown or expired ids are reopened under the
// same id.
func (s *service) ensureSession(ctx context.Context, sessionID string) string {
	if sessionID != "" {
		_, ok, err := s.store.Messages(ctx, sessionID)
		if err != nil {
			s.logger.Warn("session lookup failed", "session_id", sessionID, "error", err)
			return sessionID
		}
		if ok {
			return sessionID
		}
	} else {
		sessionID = s.newID()
	}
	welcome := []Message{{Role: RoleAssistant, Content: welcomeMessage, Source: SourceWelcome, CreatedAt: util.NowUTC()}}
	if err := s.store.Append(ctx, sessionID, welcome, s.cfg.SessionTTL, s.cfg.MaxMessages); err != nil {
		s.logger.Warn("session open failed", "session_id", sessionID, "error", err)
	}
	return sessionID
}
