// Package vectorstore implements the partitioned vector index against
// Qdrant: one collection per partition, gRPC client, UUID-derived point ids
// since Qdrant only accepts UUID or unsigned-integer point ids.
package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragserver/internal/config"
	"ragserver/internal/ports"
)

// payloadIDField carries the caller-supplied vector id in the point payload,
// since the point id itself is a deterministic UUID derived from it.
const payloadIDField = "_original_id"
const payloadFileIDField = "file_id"
const payloadLevelIndexField = "level_index"
const payloadContentField = "content"
const payloadInsertedAtField = "inserted_at"

// Qdrant implements ports.VectorStore.
type Qdrant struct {
	client    *qdrant.Client
	dimension int
}

// New connects to Qdrant over gRPC using the given address.
func New(cfg config.VectorStoreConfig, dimension int) (*Qdrant, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector store requires dimension > 0")
	}
	host, port, err := splitHostPort(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("parse vector store address: %w", err)
	}
	qcfg := &qdrant.Config{Host: host, Port: port, UseTLS: cfg.UseTLS}
	if cfg.APIKey != "" {
		qcfg.APIKey = cfg.APIKey
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Qdrant{client: client, dimension: dimension}, nil
}

func (q *Qdrant) Close() error { return q.client.Close() }

func (q *Qdrant) EnsurePartition(ctx context.Context, partition string) error {
	exists, err := q.client.CollectionExists(ctx, partition)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: partition,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", partition, err)
	}
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, partition string, points []ports.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := q.EnsurePartition(ctx, partition); err != nil {
		return err
	}
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		pointUUID := pointIDFor(p.VectorID)
		payload := map[string]any{
			payloadFileIDField:     p.FileID,
			payloadLevelIndexField: int64(p.LevelIndex),
			payloadContentField:    p.Content,
			payloadInsertedAtField: p.InsertedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if pointUUID != p.VectorID {
			payload[payloadIDField] = p.VectorID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: partition,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", partition, err)
	}
	return nil
}

// searchResult pairs a partition's matches with any error from searching it.
type searchResult struct {
	matches []ports.VectorMatch
	err     error
}

// Search fans out one query per partition concurrently, skipping partitions
// that don't exist (a file with no indexed content contributes zero results,
// not an error), then merges all matches for the caller to rank.
func (q *Qdrant) Search(ctx context.Context, partitions []string, query []float32, k int) ([]ports.VectorMatch, error) {
	if k <= 0 {
		k = 10
	}
	resultCh := make(chan searchResult, len(partitions))
	for _, partition := range partitions {
		partition := partition
		go func() {
			resultCh <- q.searchPartition(ctx, partition, query, k)
		}()
	}
	var all []ports.VectorMatch
	for range partitions {
		r := <-resultCh
		if r.err != nil {
			continue
		}
		all = append(all, r.matches...)
	}
	return all, nil
}

func (q *Qdrant) searchPartition(ctx context.Context, partition string, query []float32, k int) searchResult {
	exists, err := q.client.CollectionExists(ctx, partition)
	if err != nil || !exists {
		return searchResult{}
	}
	vec := make([]float32, len(query))
	copy(vec, query)
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: partition,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return searchResult{err: err}
	}
	matches := make([]ports.VectorMatch, 0, len(hits))
	for _, hit := range hits {
		vectorID := hit.Id.GetUuid()
		var fileID, content string
		var levelIndex int
		if hit.Payload != nil {
			if v, ok := hit.Payload[payloadIDField]; ok {
				vectorID = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadFileIDField]; ok {
				fileID = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadContentField]; ok {
				content = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadLevelIndexField]; ok {
				levelIndex = int(v.GetIntegerValue())
			}
		}
		matches = append(matches, ports.VectorMatch{
			VectorID:   vectorID,
			Content:    content,
			FileID:     fileID,
			LevelIndex: levelIndex,
			Score:      hit.Score,
		})
	}
	return searchResult{matches: matches}
}

func (q *Qdrant) DropPartition(ctx context.Context, partition string) error {
	exists, err := q.client.CollectionExists(ctx, partition)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, partition); err != nil {
		return fmt.Errorf("drop collection %s: %w", partition, err)
	}
	return nil
}

// pointIDFor derives a UUID point id from an arbitrary vector id, since
// Qdrant only accepts UUIDs or unsigned integers as point ids.
func pointIDFor(vectorID string) string {
	if _, err := uuid.Parse(vectorID); err == nil {
		return vectorID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(vectorID)).String()
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// no port supplied; treat the whole value as a host
		return addr, 6334, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	if host == "" {
		host = "localhost"
	}
	return host, port, nil
}
