package qa

import (
	"encoding/json"

	"github.com/samber/mo"
)

// QARecord is a single question/answer pair. Its position in the dataset is
// also its key inside the similarity index.
type QARecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}

// Dataset is the ordered, read-only record sequence loaded at startup.
type Dataset struct {
	Records []QARecord
	// Fingerprint is a digest of the raw dataset content.
	Fingerprint string
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Records)
}

// Neighbor is one hit returned by an Index.
type Neighbor struct {
	Position int
	Distance float64
}

// SearchResult pairs a matched record with its distance and derived confidence.
type SearchResult struct {
	Position   int     `json:"position"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
}

// MatchDetails is the optional metadata attached to a chat answer.
type MatchDetails struct {
	Confidence      float64
	MatchedQuestion mo.Option[string]
}

// ChatResponse is the answer returned by Chat. Details is absent when the
// caller did not ask for confidence, which is different from a zero value.
type ChatResponse struct {
	Answer  string
	Details mo.Option[MatchDetails]
}

// Confidence returns the confidence when details are present.
func (r ChatResponse) Confidence() (float64, bool) {
	details, ok := r.Details.Get()
	if !ok {
		return 0, false
	}
	return details.Confidence, true
}

// MatchedQuestion returns the matched question when one was recorded.
func (r ChatResponse) MatchedQuestion() (string, bool) {
	details, ok := r.Details.Get()
	if !ok {
		return "", false
	}
	return details.MatchedQuestion.Get()
}

// MarshalJSON omits confidence and matchedQuestion when they are absent and
// writes matchedQuestion as null when details exist without a match.
func (r ChatResponse) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"answer": r.Answer}
	if details, ok := r.Details.Get(); ok {
		payload["confidence"] = details.Confidence
		if q, ok := details.MatchedQuestion.Get(); ok {
			payload["matchedQuestion"] = q
		} else {
			payload["matchedQuestion"] = nil
		}
	}
	return json.Marshal(payload)
}

// Stats summarises the loaded dataset and index.
type Stats struct {
	Records    int    `json:"records"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
	Backend    string `json:"backend"`
	Version    string `json:"version"`
}
