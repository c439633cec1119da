package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
	"github.com/yanqian/offlineqa/internal/domain/qa"
	"github.com/yanqian/offlineqa/internal/infra/config"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	bot         qa.Chatbot
	chatSvc     conversation.Service
	defaultTopK int
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, bot qa.Chatbot, chatSvc conversation.Service, logger *slog.Logger) *Handler {
	defaultTopK := cfg.Chat.TopK
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Handler{
		bot:         bot,
		chatSvc:     chatSvc,
		defaultTopK: defaultTopK,
		logger:      logger.With("component", "http.handler"),
	}
}

type answerRequest struct {
	Query     string   `json:"query"`
	Threshold *float64 `json:"threshold"`
}

type askRequest struct {
	Query          string `json:"query"`
	ShowConfidence bool   `json:"showConfidence"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"topK"`
}

// Chat runs one conversational turn.
func (h *Handler) Chat(c *gin.Context) {
	var req conversation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.chatSvc.Reply(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ask answers without session state. Confidence and the matched question are
// included only when showConfidence is set.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.bot.Chat(c.Request.Context(), req.Query, req.ShowConfidence)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Answer returns the best answer text, prefixed with a disclaimer when the
// match is weak.
func (h *Handler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	threshold := h.bot.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	answer, err := h.bot.GetAnswer(c.Request.Context(), req.Query, threshold)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// Search returns the nearest records with their confidence.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	results, err := h.bot.Search(c.Request.Context(), req.Query, topK)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	if results == nil {
		results = []qa.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// SessionMessages returns a session transcript.
func (h *Handler) SessionMessages(c *gin.Context) {
	session, err := h.chatSvc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// ClearSession resets a session to the greeting.
func (h *Handler) ClearSession(c *gin.Context) {
	session, err := h.chatSvc.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// Trending returns the most common retrieval queries.
func (h *Handler) Trending(c *gin.Context) {
	items, err := h.chatSvc.Trending(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	if items == nil {
		items = []conversation.TrendingQuery{}
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": items})
}

// Stats describes the loaded dataset and index.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.bot.Stats())
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": h.bot.Stats().Records})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
