package conversation

import "fmt"

const (
	welcomeMessage = "नमस्ते! 🌾 मैं कृषिमित्र हूं। मैं ऑफलाइन मोड में काम कर रहा हूं।\n\n" +
		"Hello! 🌾 I am KrishiMitra. I'm working in offline mode."
	clearedMessage = "नमस्ते! 🌾 मैं कृषिमित्र हूं।\n\nHello! 🌾 I am KrishiMitra."
)

// WelcomeMessage is the first assistant message of every new session.
func WelcomeMessage() string { return welcomeMessage }

func lowConfidenceWarning(confidence float64) string {
	return fmt.Sprintf("⚠️ Confidence: %.0f%% - Answer may not be accurate", confidence*100)
}
