// Package vectormemory implements a per-namespace approximate-nearest-
// neighbor store over Qdrant, mirrored field-for-field into Redis so exact
// byte records (including raw embeddings) survive round trips that would
// otherwise lose precision through Qdrant's payload value types.
package vectormemory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// originalIDField stores the caller-supplied id in the payload when it isn't
// itself a valid Qdrant point id (Qdrant only accepts UUIDs or positive
// integers as point ids).
const originalIDField = "_original_id"

// Record is one stored memory or document chunk.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
	Score     float64
}

// Store is an ANN-backed namespace (collection) of Records.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// Open connects to Qdrant at dsn (e.g. "http://localhost:6334", optionally
// with a "?api_key=" query parameter) and ensures the named collection
// exists with the given dimension/metric, creating it on first use.
func Open(ctx context.Context, dsn, collection string, dimension int, metric string) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectormemory: collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vectormemory: dimension must be > 0")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectormemory: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectormemory: invalid port in dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectormemory: create client: %w", err)
	}

	s := &Store{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("vectormemory: ensure collection: %w", err)
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch s.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: distance,
		}),
	})
}

func pointIDFor(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

// Put upserts a Record. Callers own id uniqueness; Store does not check for
// collisions.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if len(rec.Embedding) != s.dimension {
		return fmt.Errorf("vectormemory: embedding has %d dims, collection wants %d", len(rec.Embedding), s.dimension)
	}
	pointID, remapped := pointIDFor(rec.ID)
	payload := make(map[string]any, len(rec.Metadata)+2)
	for k, v := range rec.Metadata {
		payload[k] = v
	}
	payload["text"] = rec.Text
	if remapped {
		payload[originalIDField] = rec.ID
	}
	vec := make([]float32, len(rec.Embedding))
	copy(vec, rec.Embedding)

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

// Delete removes a Record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	pointID, _ := pointIDFor(id)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID)),
	})
	return err
}

// Filter is a set of exact-match tag conditions, applied via qdrant.NewMatch
// so filter values are always bound as parameters, never interpolated into a
// query string.
type Filter map[string]string

// Search returns up to k nearest records to vector, optionally narrowed by
// filter, in ascending-distance (best-match-first) order.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Record, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		qf = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Record, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		var originalID, text string
		if hit.Payload != nil {
			for key, v := range hit.Payload {
				switch key {
				case originalIDField:
					originalID = v.GetStringValue()
				case "text":
					text = v.GetStringValue()
				default:
					metadata[key] = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		results = append(results, Record{
			ID:       id,
			Text:     text,
			Metadata: metadata,
			Score:    float64(hit.Score),
		})
	}
	return results, nil
}

// IsEmpty reports whether the namespace currently has zero points — used by
// the surprise pipeline's novelty fallback (an empty namespace has no basis
// for comparison, so novelty defaults to maximal surprise).
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Count returns the number of points currently stored in the namespace.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func pointToRecord(id *qdrant.PointId, payload map[string]*qdrant.Value) Record {
	uuidStr := id.GetUuid()
	if uuidStr == "" {
		uuidStr = id.String()
	}
	metadata := make(map[string]string)
	var originalID, text string
	for key, v := range payload {
		switch key {
		case originalIDField:
			originalID = v.GetStringValue()
		case "text":
			text = v.GetStringValue()
		default:
			metadata[key] = v.GetStringValue()
		}
	}
	recID := originalID
	if recID == "" {
		recID = uuidStr
	}
	return Record{ID: recID, Text: text, Metadata: metadata}
}

// ErrNotFound is returned by Get when no record exists for the given id.
var ErrNotFound = fmt.Errorf("vectormemory: record not found")

// Get retrieves a single Record by id, or ErrNotFound if it doesn't exist.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	pointID, _ := pointIDFor(id)
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return Record{}, err
	}
	if len(points) == 0 {
		return Record{}, ErrNotFound
	}
	return pointToRecord(points[0].Id, points[0].Payload), nil
}

// Scan iterates every record in the namespace in batches, invoking fn for
// each. It stops and returns fn's error if fn returns one.
func (s *Store) Scan(ctx context.Context, batchSize int, fn func(Record) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	limit := uint32(batchSize)
	var offset *qdrant.PointId
	for {
		req := &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			Offset:         offset,
		}
		points, err := s.client.Scroll(ctx, req)
		if err != nil {
			return fmt.Errorf("vectormemory: scan: %w", err)
		}
		// Scroll's offset is inclusive, so every page after the first leads
		// with the point the previous page ended on.
		if offset != nil && len(points) > 0 && points[0].Id.GetUuid() == offset.GetUuid() {
			points = points[1:]
		}
		if len(points) == 0 {
			return nil
		}
		for _, p := range points {
			if err := fn(pointToRecord(p.Id, p.Payload)); err != nil {
				return err
			}
		}
		if len(points) < batchSize-1 {
			return nil
		}
		offset = points[len(points)-1].Id
	}
}

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Close() error { return s.client.Close() }
