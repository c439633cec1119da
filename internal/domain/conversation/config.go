package conversation

import "time"

// Config holds runtime knobs for the conversation flow.
type Config struct {
	// ConfidenceThreshold marks answers as low confidence. Zero uses the
	// chatbot's own threshold.
	ConfidenceThreshold float64
	DefaultLanguage     string
	SessionTTL          time.Duration
	MaxMessages         int
	TopRecommendations  int
}
