// Package dataset reads the Q&A dataset from disk or object storage.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/yanqian/offlineqa/internal/domain/qa"
	apperrors "github.com/yanqian/offlineqa/pkg/errors"
)

// ObjectReader fetches a whole object from a bucket.
type ObjectReader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Loader implements qa.DatasetLoader.
type Loader struct {
	objects ObjectReader
	lenient bool
	logger  *slog.Logger
}

// NewLoader builds a loader. objects may be nil when only local files are used.
func NewLoader(objects ObjectReader, lenient bool, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{objects: objects, lenient: lenient, logger: logger.With("component", "dataset.loader")}
}

type record struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}

// Load reads path, which is either a filesystem path or s3://bucket/key.
func (l *Loader) Load(ctx context.Context, path string) (qa.Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return qa.Dataset{}, apperrors.Wrap("dataset_not_found", "dataset path is empty", nil)
	}
	raw, err := l.read(ctx, path)
	if err != nil {
		return qa.Dataset{}, err
	}
	records, err := l.parse(raw)
	if err != nil {
		return qa.Dataset{}, err
	}
	sum := sha256.Sum256(raw)
	l.logger.Info("dataset loaded", "path", path, "records", len(records))
	return qa.Dataset{Records: records, Fingerprint: hex.EncodeToString(sum[:])}, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	if bucket, key, ok := parseObjectPath(path); ok {
		if l.objects == nil {
			return nil, apperrors.Wrap("dataset_not_found", "object storage is not configured", nil)
		}
		data, err := l.objects.Get(ctx, bucket, key)
		if errors.Is(err, ErrObjectNotFound) {
			return nil, apperrors.Wrap("dataset_not_found", fmt.Sprintf("dataset object %s not found", path), err)
		}
		if err != nil {
			return nil, apperrors.Wrap("dataset_not_found", fmt.Sprintf("failed to read dataset object %s", path), err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap("dataset_not_found", fmt.Sprintf("dataset file %s not found", path), err)
	}
	if err != nil {
		return nil, apperrors.Wrap("dataset_not_found", fmt.Sprintf("failed to read dataset file %s", path), err)
	}
	return data, nil
}

func (l *Loader) parse(raw []byte) ([]qa.QARecord, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperrors.Wrap("dataset_parse_error", "dataset must be a JSON array of records", err)
	}
	// null decodes into a nil slice without error.
	if items == nil {
		return nil, apperrors.Wrap("dataset_parse_error", "dataset must be a JSON array of records", nil)
	}
	records := make([]qa.QARecord, 0, len(items))
	for i, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			if l.lenient {
				l.logger.Warn("skipping invalid dataset record", "index", i, "error", err)
				continue
			}
			return nil, apperrors.Wrap("dataset_parse_error", fmt.Sprintf("record %d is invalid", i), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(item json.RawMessage) (qa.QARecord, error) {
	var rec record
	if err := json.Unmarshal(item, &rec); err != nil {
		return qa.QARecord{}, err
	}
	if strings.TrimSpace(rec.Question) == "" {
		return qa.QARecord{}, errors.New("question is empty")
	}
	if strings.TrimSpace(rec.Answer) == "" {
		return qa.QARecord{}, errors.New("answer is empty")
	}
	return qa.QARecord{Question: rec.Question, Answer: rec.Answer, Source: rec.Source}, nil
}

// parseObjectPath splits s3://bucket/key.
func parseObjectPath(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", false
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

var _ qa.DatasetLoader = (*Loader)(nil)
