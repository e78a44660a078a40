package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"voice_gateway/server/gateway/domain"
)

// ContextSeparator joins the per-hit blocks of a RAG context.
const ContextSeparator = "\n\n---\n\n"

var (
	textFields   = []string{"text", "chunk", "content"}
	sourceFields = []string{"source", "doc", "url"}
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize int) error
	Search(ctx context.Context, vector []float32, limit int) ([]domain.SearchHit, error)
}

// Retriever turns a free-text query into a prompt context and a ranked list
// of sources.
type Retriever struct {
	embedder Embedder
	store    VectorStore
}

func NewRetriever(embedder Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds query, makes sure the collection exists, and searches it
// for the topK nearest hits. Any failure aborts the whole retrieval.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (string, []domain.Source, error) {
	if topK <= 0 {
		return "", []domain.Source{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return "", nil, fmt.Errorf("embed query: no vector returned")
	}
	vector := vectors[0]

	if err := r.store.EnsureCollection(ctx, len(vector)); err != nil {
		return "", nil, fmt.Errorf("ensure collection: %w", err)
	}

	hits, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return "", nil, fmt.Errorf("search collection: %w", err)
	}

	contextText, sources := BuildContext(hits)
	return contextText, sources, nil
}

// BuildContext formats hits into the context string and the source list.
// Hits without text still appear in the sources, but add no context block.
func BuildContext(hits []domain.SearchHit) (string, []domain.Source) {
	blocks := make([]string, 0, len(hits))
	sources := make([]domain.Source, 0, len(hits))
	for _, hit := range hits {
		text := firstNonEmpty(hit.Payload, textFields)
		source := firstNonEmpty(hit.Payload, sourceFields)
		if text != "" {
			blocks = append(blocks, strings.TrimSpace(text+"\n(source: "+source+")"))
		}
		sources = append(sources, domain.Source{Score: hit.Score, Source: source, Text: text})
	}
	return strings.Join(blocks, ContextSeparator), sources
}

// firstNonEmpty returns the first field in keys whose payload value renders
// to a non-empty string.
func firstNonEmpty(payload map[string]any, keys []string) string {
	for _, key := range keys {
		if s := payloadString(payload[key]); s != "" {
			return s
		}
	}
	return ""
}

// payloadString renders a payload value as text. Zero values count as absent.
// Floats keep a fractional part (1.0 stays "1.0") and lists and objects
// are rendered as compact JSON.
func payloadString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case int64:
		if val == 0 {
			return ""
		}
		return strconv.FormatInt(val, 10)
	case float64:
		if val == 0 {
			return ""
		}
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			s += ".0"
		}
		return s
	case []any:
		if len(val) == 0 {
			return ""
		}
		return marshalPayload(val)
	case map[string]any:
		if len(val) == 0 {
			return ""
		}
		return marshalPayload(val)
	}
	return fmt.Sprint(v)
}

func marshalPayload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
