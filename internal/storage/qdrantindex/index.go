// ABOUTME: Qdrant vector index for verse and passage similarity search over gRPC
// ABOUTME: One collection per pool; payload carries reference fields for ranking
package qdrantindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// Config selects the qdrant endpoint and collections
type Config struct {
	Addr             string // gRPC address, e.g. localhost:6334
	CollectionPrefix string
	Dimensions       int
}

// Index is a storage.VectorIndex backed by qdrant
type Index struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	health      qdrant.QdrantClient
	prefix      string
	dims        int
}

var _ storage.VectorIndex = (*Index)(nil)

// Connect dials qdrant and ensures both collections exist
func Connect(ctx context.Context, cfg Config) (*Index, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := NewWithClients(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), qdrant.NewQdrantClient(conn), cfg)
	idx.conn = conn

	if err := idx.EnsureCollections(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithClients builds an index over existing gRPC clients
func NewWithClients(points qdrant.PointsClient, collections qdrant.CollectionsClient, health qdrant.QdrantClient, cfg Config) *Index {
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "scripture"
	}
	return &Index{
		points:      points,
		collections: collections,
		health:      health,
		prefix:      prefix,
		dims:        cfg.Dimensions,
	}
}

// Collection returns the collection name for a pool
func (i *Index) Collection(kind models.ResultKind) string {
	if kind == models.KindPassage {
		return i.prefix + "_passages"
	}
	return i.prefix + "_verses"
}

// EnsureCollections creates missing collections with cosine distance
func (i *Index) EnsureCollections(ctx context.Context) error {
	for _, kind := range []models.ResultKind{models.KindVerse, models.KindPassage} {
		name := i.Collection(kind)
		_, err := i.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
		if err == nil {
			continue
		}
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to get collection %s: %w", name, err)
		}

		_, err = i.collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(i.dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// maxFetch bounds how far SearchBySimilarity widens a request chasing ties
const maxFetch = 1024

// SearchBySimilarity queries one pool and re-ranks the hits. Qdrant breaks
// score ties arbitrarily, so the request is widened until every hit tied with
// the last kept score is present and storage.Rank picks the canonical ones.
func (i *Index) SearchBySimilarity(ctx context.Context, q storage.SimilarityQuery) ([]models.SearchResult, error) {
	if q.Limit <= 0 {
		return []models.SearchResult{}, nil
	}
	kind := q.Kind
	if kind == "" {
		kind = models.KindVerse
	}

	fetch := 2 * q.Limit
	var points []*qdrant.ScoredPoint
	for {
		var err error
		points, err = i.search(ctx, kind, q, fetch)
		if err != nil {
			return nil, err
		}
		if !tieAtCutoff(points, q.Limit, fetch) || fetch >= maxFetch {
			break
		}
		fetch = min(2*fetch, maxFetch)
	}

	results := make([]models.SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, resultFromPayload(kind, point.GetPayload(), float64(point.GetScore())))
	}
	return storage.Rank(results, q.Threshold, q.Limit), nil
}

func (i *Index) search(ctx context.Context, kind models.ResultKind, q storage.SimilarityQuery, limit int) ([]*qdrant.ScoredPoint, error) {
	threshold := float32(q.Threshold)
	resp, err := i.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: i.Collection(kind),
		Vector:         q.Vector,
		Filter:         scopeFilter(kind, q.Translation),
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search %s: %w", i.Collection(kind), err)
	}
	return resp.GetResult(), nil
}

// tieAtCutoff reports whether a full page of hits (qdrant returns them
// best first) ends on the score of the limit-th hit, meaning more hits with
// that score may have been cut off.
func tieAtCutoff(points []*qdrant.ScoredPoint, limit, fetched int) bool {
	if len(points) < fetched || len(points) < limit {
		return false
	}
	return points[len(points)-1].GetScore() == points[limit-1].GetScore()
}

// scopeFilter limits verses to one translation; passages also match shared entries
func scopeFilter(kind models.ResultKind, translation string) *qdrant.Filter {
	if translation == "" {
		return nil
	}
	if kind == models.KindPassage {
		return &qdrant.Filter{
			Should: []*qdrant.Condition{
				qdrant.NewMatch("translation", translation),
				qdrant.NewMatchBool("shared", true),
			},
		}
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("translation", translation)},
	}
}

// UpsertVerses indexes embedded verses; verses without vectors are skipped
func (i *Index) UpsertVerses(ctx context.Context, verses []models.Verse) error {
	points := make([]*qdrant.PointStruct, 0, len(verses))
	for _, v := range verses {
		if len(v.Embedding) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(v.ID)),
			Vectors: qdrant.NewVectorsDense(v.Embedding),
			Payload: qdrant.NewValueMap(map[string]any{
				"book":          v.Book,
				"book_position": v.BookPosition,
				"chapter":       v.Chapter,
				"verse":         v.Verse,
				"translation":   v.Translation,
				"text":          v.Text,
			}),
		})
	}
	return i.upsert(ctx, models.KindVerse, points)
}

// UpsertPassages indexes embedded passages
func (i *Index) UpsertPassages(ctx context.Context, passages []models.Passage) error {
	points := make([]*qdrant.PointStruct, 0, len(passages))
	for _, p := range passages {
		if len(p.Embedding) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
			Payload: qdrant.NewValueMap(map[string]any{
				"title":         p.Title,
				"book":          p.Book,
				"book_position": p.BookPosition,
				"chapter":       p.StartChapter,
				"verse":         p.StartVerse,
				"end_chapter":   p.EndChapter,
				"end_verse":     p.EndVerse,
				"translation":   p.Translation,
				"shared":        p.Translation == "",
				"text":          p.Text,
				"topics":        storage.JoinTopics(p.Topics),
			}),
		})
	}
	return i.upsert(ctx, models.KindPassage, points)
}

func (i *Index) upsert(ctx context.Context, kind models.ResultKind, points []*qdrant.PointStruct) error {
	if len(points) == 0 {
		return nil
	}
	wait := true
	resp, err := i.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.Collection(kind),
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", i.Collection(kind), err)
	}
	st := resp.GetResult().GetStatus()
	if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("qdrant upsert %s: status %s", i.Collection(kind), st)
	}
	return nil
}

func resultFromPayload(kind models.ResultKind, payload map[string]*qdrant.Value, score float64) models.SearchResult {
	str := func(k string) string { return payload[k].GetStringValue() }
	num := func(k string) int { return int(payload[k].GetIntegerValue()) }

	r := models.SearchResult{
		Kind:         kind,
		Title:        str("title"),
		Book:         str("book"),
		BookPosition: num("book_position"),
		Chapter:      num("chapter"),
		Verse:        num("verse"),
		EndChapter:   num("end_chapter"),
		EndVerse:     num("end_verse"),
		Translation:  str("translation"),
		Text:         str("text"),
		Similarity:   score,
	}
	if topics := str("topics"); topics != "" {
		r.Topics = strings.Split(topics, ",")
	}
	r.Reference = models.FormatReference(r.Book, r.Chapter, r.Verse, r.EndChapter, r.EndVerse)
	return r
}

// Ping runs the qdrant health check
func (i *Index) Ping(ctx context.Context) error {
	_, err := i.health.HealthCheck(ctx, &qdrant.HealthCheckRequest{})
	return err
}

// Close releases the gRPC connection
func (i *Index) Close() error {
	if i.conn != nil {
		return i.conn.Close()
	}
	return nil
}
