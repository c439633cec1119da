// Package embedder holds the embedding providers used to vectorise questions.
package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimensions matches the width of small sentence-transformer
// models so index backends can be swapped without schema changes.
const DefaultHashingDimensions = 384

// HashingModel is the model id reported for the hashing embedder.
const HashingModel = "feature-hash-v1"

// HashingEmbedder maps text to a signed feature-hash vector of word unigrams
// and character trigrams. It needs no model files or network and is
// deterministic: identical text always yields an identical vector.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder constructs the embedder.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimensions
	}
	return &HashingEmbedder{dim: dim}
}

// Dimensions reports the vector width.
func (e *HashingEmbedder) Dimensions() int { return e.dim }

// Embed returns one unit-length vector per text. Text without any letters or
// digits maps to the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	acc := make([]float64, e.dim)
	for _, word := range tokenize(text) {
		e.add(acc, "w:"+word, 1.0)
		runes := []rune(" " + word + " ")
		for j := 0; j+3 <= len(runes); j++ {
			e.add(acc, "c:"+string(runes[j:j+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vector := make([]float32, e.dim)
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for j, v := range acc {
		vector[j] = float32(v / norm)
	}
	return vector
}

func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(feature))
	sum := hash.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// tokenize lowercases text and splits on anything that is not a letter,
// digit or combining mark.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}
