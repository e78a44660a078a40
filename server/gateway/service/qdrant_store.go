package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"voice_gateway/server/common/apperr"
	commonlog "voice_gateway/server/common/log"
	"voice_gateway/server/common/metrics"
	"voice_gateway/server/gateway/domain"
)

const (
	providerQdrant = "Qdrant"

	qdrantRESTPort = 6333
	qdrantGRPCPort = 6334
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	// GRPCPort overrides the port derived from URL.
	GRPCPort int
}

// qdrantAPI is the subset of *qdrant.Client the store uses.
type qdrantAPI interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// QdrantStore reads a single named collection. Stored items are populated
// elsewhere; this store never writes points.
type QdrantStore struct {
	api        qdrantAPI
	collection string
	metrics    *metrics.Metrics
}

func NewQdrantStore(cfg QdrantConfig, m *metrics.Metrics) (*QdrantStore, error) {
	qcfg, err := qdrantClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("initialize qdrant client: %w", err)
	}
	commonlog.Infof("qdrant client for %s:%d (tls=%t, collection=%s)", qcfg.Host, qcfg.Port, qcfg.UseTLS, cfg.Collection)
	return newQdrantStore(client, cfg.Collection, m), nil
}

func newQdrantStore(api qdrantAPI, collection string, m *metrics.Metrics) *QdrantStore {
	return &QdrantStore{api: api, collection: strings.TrimSpace(collection), metrics: m}
}

// qdrantClientConfig maps the REST style QDRANT_URL onto the gRPC client
// settings. The default REST port is swapped for the gRPC one.
func qdrantClientConfig(cfg QdrantConfig) (*qdrant.Config, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, apperr.NewConfigError(providerQdrant, "QDRANT_URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse QDRANT_URL %q: %w", cfg.URL, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("parse QDRANT_URL %q: missing host", cfg.URL)
	}

	port := qdrantGRPCPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse QDRANT_URL %q: %w", cfg.URL, err)
		}
		if n != qdrantRESTPort {
			port = n
		}
	}
	if cfg.GRPCPort > 0 {
		port = cfg.GRPCPort
	}

	return &qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 strings.TrimSpace(cfg.APIKey),
		UseTLS:                 u.Scheme == "https",
		SkipCompatibilityCheck: true,
	}, nil
}

// EnsureCollection creates the collection with cosine distance when it is not
// listed. An existing collection is left untouched even if its size differs.
func (q *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) (err error) {
	defer func(start time.Time) { q.metrics.ObserveUpstream("qdrant", "ensure_collection", start, err) }(time.Now())

	names, err := q.api.ListCollections(ctx)
	if err != nil {
		return apperr.NewProviderError(providerQdrant, "list collections", err)
	}
	if slices.Contains(names, q.collection) {
		return nil
	}

	commonlog.Infof("qdrant collection %q not found, creating (size=%d, distance=cosine)", q.collection, vectorSize)
	req := &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	}
	if err := q.api.CreateCollection(ctx, req); err != nil {
		return apperr.NewProviderError(providerQdrant, "create collection", err)
	}
	return nil
}

// Search returns up to limit hits with payload, best match first.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, limit int) (hits []domain.SearchHit, err error) {
	if limit <= 0 {
		return []domain.SearchHit{}, nil
	}
	defer func(start time.Time) { q.metrics.ObserveUpstream("qdrant", "search", start, err) }(time.Now())

	l := uint64(limit)
	points, err := q.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperr.NewProviderError(providerQdrant, "search", err)
	}

	hits = make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		score := float64(p.GetScore())
		hits = append(hits, domain.SearchHit{
			ID:      pointID(p.GetId()),
			Score:   &score,
			Payload: convertPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

func (q *QdrantStore) Ping(ctx context.Context) error {
	if _, err := q.api.HealthCheck(ctx); err != nil {
		return apperr.NewProviderError(providerQdrant, "health check", err)
	}
	return nil
}

func (q *QdrantStore) Close() error {
	return q.api.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	case *qdrant.PointId_Uuid:
		return v.Uuid
	default:
		return ""
	}
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = convertValue(v)
	}
	return result
}

func convertValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return convertPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = convertValue(item)
		}
		return items
	default:
		return nil
	}
}
