package results

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pkg/logger"
	"github.com/searchlab/search-eval/internal/pool"
)

const (
	// DefaultQdrantPort is the Qdrant gRPC port.
	DefaultQdrantPort = 6334

	defaultQdrantTimeout = 30 * time.Second

	// maxGrpcMessageSize allows large payload-bearing result pages.
	maxGrpcMessageSize = 32 * 1024 * 1024
)

// QdrantConfig holds connection settings for a Qdrant retrieval source.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// CollectionPrefix is prepended to every collection name.
	CollectionPrefix string

	// Timeout bounds each search call.
	Timeout time.Duration
}

// QdrantSource fetches ranked results live from a Qdrant collection, so
// a pooling run can include a method that has no exported run file.
type QdrantSource struct {
	client *qdrant.Client
	config QdrantConfig
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQdrantSource connects to Qdrant over gRPC.
func NewQdrantSource(cfg QdrantConfig, log *logger.Logger) (*QdrantSource, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultQdrantPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultQdrantTimeout
	}
	if log == nil {
		log = logger.Default()
	}

	qdrantConfig := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxGrpcMessageSize),
				grpc.MaxCallSendMsgSize(maxGrpcMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "create qdrant client", err)
	}

	return &QdrantSource{client: client, config: cfg, log: log}, nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// HealthCheck verifies the server is reachable.
func (s *QdrantSource) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(errors.CodeUnavailable, "qdrant source is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "qdrant health check failed", err)
	}
	return nil
}

// Search runs a dense query against a collection and returns the hits
// in rank order, ranks starting at 1.
func (s *QdrantSource) Search(ctx context.Context, collection, query string, vector []float32, topK int) ([]pool.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.CodeUnavailable, "qdrant source is closed")
	}
	if len(vector) == 0 {
		return nil, errors.ValidationError("query vector is empty")
	}
	if topK < 1 {
		return nil, errors.ValidationError("top K must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionPrefix + collection,
		Query:          qdrant.NewQueryDense(vector),
		Using:          qdrant.PtrOf("dense"),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "qdrant search failed", err)
	}

	hits := make([]pool.SearchHit, 0, len(points))
	for i, p := range points {
		score := float64(p.Score)
		hit := pool.SearchHit{
			Query: query,
			DocID: pointID(p.Id),
			Rank:  i + 1,
			Score: &score,
		}
		if fields := payloadFields(p.Payload); len(fields) > 0 {
			hit.Fields = fields
			if docID := fields["doc_id"]; docID != "" {
				hit.DocID = docID
				delete(fields, "doc_id")
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// FetchRun embeds a batch of queries and searches each one, producing a
// complete run for a single method.
func (s *QdrantSource) FetchRun(ctx context.Context, embedder Embedder, collection string, queries []string, topK int) ([]pool.SearchHit, error) {
	if embedder == nil {
		return nil, errors.ConfigurationError("an embedder is required to fetch runs")
	}
	if len(queries) == 0 {
		return nil, errors.ValidationError("no queries to fetch")
	}

	vectors, err := embedder.Embed(ctx, queries)
	if err != nil {
		return nil, err
	}

	var run []pool.SearchHit
	for i, query := range queries {
		hits, err := s.Search(ctx, collection, query, vectors[i], topK)
		if err != nil {
			return nil, errors.Wrap(errors.CodeUnavailable,
				fmt.Sprintf("fetch results for query %q", query), err)
		}
		run = append(run, hits...)
	}

	s.log.Info("Fetched run from qdrant",
		"collection", collection,
		"queries", len(queries),
		"hits", len(run),
	)
	return run, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	}
	return ""
}

// payloadFields flattens string-valued payload entries; numeric values
// are formatted, nested structures skipped.
func payloadFields(payload map[string]*qdrant.Value) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	fields := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			fields[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			fields[key] = strconv.FormatInt(v.IntegerValue, 10)
		case *qdrant.Value_DoubleValue:
			fields[key] = strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
		case *qdrant.Value_BoolValue:
			fields[key] = strconv.FormatBool(v.BoolValue)
		}
	}
	return fields
}
