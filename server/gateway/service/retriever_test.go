package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_gateway/server/common/apperr"
	"voice_gateway/server/gateway/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{f.vector}, nil
}

type fakeVectorStore struct {
	hits        []domain.SearchHit
	searchErr   error
	ensureErr   error
	ensureSizes []int
	limits      []int
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, vectorSize int) error {
	f.ensureSizes = append(f.ensureSizes, vectorSize)
	return f.ensureErr
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, limit int) ([]domain.SearchHit, error) {
	f.limits = append(f.limits, limit)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func score(v float64) *float64 { return &v }

func TestRetrieveWorkedExample(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	store := &fakeVectorStore{hits: []domain.SearchHit{
		{Score: score(0.9), Payload: map[string]any{"text": "A", "source": "S1"}},
		{Score: score(0.8), Payload: map[string]any{"text": "", "source": "S2"}},
	}}

	contextText, sources, err := NewRetriever(embedder, store).Retrieve(context.Background(), "what is A?", 5)
	require.NoError(t, err)

	assert.Equal(t, "A\n(source: S1)", contextText)
	assert.Equal(t, []domain.Source{
		{Score: score(0.9), Source: "S1", Text: "A"},
		{Score: score(0.8), Source: "S2", Text: ""},
	}, sources)

	assert.Equal(t, [][]string{{"what is A?"}}, embedder.calls)
	assert.Equal(t, []int{3}, store.ensureSizes)
	assert.Equal(t, []int{5}, store.limits)
}

func TestBuildContextKeepsEveryHitInSources(t *testing.T) {
	hits := []domain.SearchHit{
		{Score: score(0.95), Payload: map[string]any{"chunk": "first", "doc": "d1"}},
		{Score: score(0.90), Payload: map[string]any{"source": "empty"}},
		{Score: score(0.85), Payload: map[string]any{"content": "third", "url": "https://x"}},
		{Score: nil, Payload: nil},
		{Score: score(0.70), Payload: map[string]any{"text": "fifth"}},
	}

	contextText, sources := BuildContext(hits)

	require.Len(t, sources, len(hits))
	parts := strings.Split(contextText, ContextSeparator)
	assert.Equal(t, []string{
		"first\n(source: d1)",
		"third\n(source: https://x)",
		"fifth\n(source: )",
	}, parts)
	assert.Nil(t, sources[3].Score)
	assert.Equal(t, "empty", sources[1].Source)
}

func TestBuildContextEmpty(t *testing.T) {
	contextText, sources := BuildContext(nil)
	assert.Equal(t, "", contextText)
	assert.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestFieldPriority(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantText   string
		wantSource string
	}{
		{
			name:       "text wins over chunk and content",
			payload:    map[string]any{"content": "c", "chunk": "b", "text": "a", "url": "u", "source": "s"},
			wantText:   "a",
			wantSource: "s",
		},
		{
			name:       "empty text falls through to chunk",
			payload:    map[string]any{"text": "", "chunk": "b", "doc": "d", "url": "u"},
			wantText:   "b",
			wantSource: "d",
		},
		{
			name:       "content and url as last resort",
			payload:    map[string]any{"content": "c", "url": "u"},
			wantText:   "c",
			wantSource: "u",
		},
		{
			name:       "non string values are rendered",
			payload:    map[string]any{"text": int64(42), "source": false, "doc": "d"},
			wantText:   "42",
			wantSource: "d",
		},
		{
			name:    "nothing present",
			payload: map[string]any{"title": "ignored"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantText, firstNonEmpty(tt.payload, textFields))
			assert.Equal(t, tt.wantSource, firstNonEmpty(tt.payload, sourceFields))
		})
	}
}

func TestPayloadString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil", value: nil, want: ""},
		{name: "string", value: "plain", want: "plain"},
		{name: "false is absent", value: false, want: ""},
		{name: "true", value: true, want: "true"},
		{name: "zero int is absent", value: int64(0), want: ""},
		{name: "int", value: int64(-7), want: "-7"},
		{name: "zero float is absent", value: 0.0, want: ""},
		{name: "integral float keeps fraction", value: 1.0, want: "1.0"},
		{name: "float", value: 2.5, want: "2.5"},
		{name: "large float is not exponent", value: 1e21, want: "1000000000000000000000.0"},
		{name: "empty list is absent", value: []any{}, want: ""},
		{name: "list", value: []any{"a", "b"}, want: `["a","b"]`},
		{name: "mixed list", value: []any{int64(1), 2.5, true, nil}, want: `[1,2.5,true,null]`},
		{name: "empty object is absent", value: map[string]any{}, want: ""},
		{name: "object", value: map[string]any{"k": "v"}, want: `{"k":"v"}`},
		{name: "nested object sorts keys", value: map[string]any{"b": []any{"x"}, "a": int64(1)}, want: `{"a":1,"b":["x"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payloadString(tt.value))
		})
	}
}

func TestRetrieveNonPositiveTopK(t *testing.T) {
	for _, topK := range []int{0, -3} {
		embedder := &fakeEmbedder{vector: []float32{1}}
		store := &fakeVectorStore{}

		contextText, sources, err := NewRetriever(embedder, store).Retrieve(context.Background(), "q", topK)
		require.NoError(t, err)
		assert.Equal(t, "", contextText)
		assert.NotNil(t, sources)
		assert.Empty(t, sources)
		assert.Empty(t, embedder.calls)
		assert.Empty(t, store.limits)
	}
}

func TestRetrieveFailures(t *testing.T) {
	providerErr := apperr.NewProviderError("Qdrant", "search", errors.New("dimension mismatch"))

	t.Run("embedding fails fast", func(t *testing.T) {
		embedder := &fakeEmbedder{err: apperr.NewConfigError("Azure OpenAI", "AZURE_OPENAI_API_KEY")}
		store := &fakeVectorStore{}

		_, _, err := NewRetriever(embedder, store).Retrieve(context.Background(), "q", 5)
		assert.True(t, apperr.IsConfig(err))
		assert.Empty(t, store.ensureSizes)
	})

	t.Run("ensure collection fails", func(t *testing.T) {
		store := &fakeVectorStore{ensureErr: providerErr}
		_, _, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, store).Retrieve(context.Background(), "q", 5)
		assert.ErrorIs(t, err, providerErr)
		assert.Empty(t, store.limits)
	})

	t.Run("search error propagates", func(t *testing.T) {
		store := &fakeVectorStore{searchErr: providerErr}
		contextText, sources, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, store).Retrieve(context.Background(), "q", 5)
		assert.True(t, apperr.IsProvider(err))
		assert.Empty(t, contextText)
		assert.Nil(t, sources)
	})
}
