package qa

// Config holds runtime knobs for the retrieval chatbot.
type Config struct {
	DatasetPath         string
	EmbeddingModel      string
	IndexBackend        string
	ConfidenceThreshold float64
}
