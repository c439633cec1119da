package conversation

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Reply sources.
const (
	SourceWelcome   = "welcome"
	SourceSmalltalk = "smalltalk"
	SourceRetrieval = "retrieval"
)

// Message is one entry of a session transcript.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Source     string    `json:"source,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Request is a single user turn.
type Request struct {
	Query     string `json:"query"`
	Language  string `json:"language"`
	SessionID string `json:"sessionId"`
}

// Response is the assistant turn returned to front ends.
type Response struct {
	SessionID       string          `json:"sessionId"`
	Answer          string          `json:"answer"`
	Source          string          `json:"source"`
	Confidence      *float64        `json:"confidence,omitempty"`
	MatchedQuestion string          `json:"matchedQuestion,omitempty"`
	LowConfidence   bool            `json:"lowConfidence"`
	Warning         string          `json:"warning,omitempty"`
	Recommendations []TrendingQuery `json:"recommendations"`
}

// TrendingQuery represents a frequently asked retrieval query.
type TrendingQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Session is the transcript of one conversation.
type Session struct {
	ID       string    `json:"sessionId"`
	Messages []Message `json:"messages"`
}
