package vectorstore

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
)

type queryCacheKey struct {
	collection string
	query      string
	n          int
}

// ChromemGateway implements Gateway on top of an in-process chromem-go
// database. It additionally caches recent query results in a small LRU so
// that a cohort of concurrently dispatched agents (§4.2) requesting
// overlapping context doesn't redundantly re-embed the same query text.
type ChromemGateway struct {
	db       *chromem.DB
	embedder EmbeddingFunc
	logger   logging.Logger

	mu          sync.Mutex
	collections map[string]*chromem.Collection

	cache *lru.Cache[queryCacheKey, []core.SearchResult]
}

// Options configures a ChromemGateway.
type Options struct {
	Embedder  EmbeddingFunc
	CacheSize int
	Logger    logging.Logger
}

// New constructs a ChromemGateway backed by a fresh in-memory chromem-go database.
func New(optFns ...func(*Options)) (*ChromemGateway, error) {
	opts := Options{CacheSize: 256, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = NewDeterministicEmbeddingFunc(64)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	cache, err := lru.New[queryCacheKey, []core.SearchResult](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to build query cache: %w", err)
	}
	return &ChromemGateway{
		db:          chromem.NewDB(),
		embedder:    opts.Embedder,
		logger:      opts.Logger,
		collections: make(map[string]*chromem.Collection),
		cache:       cache,
	}, nil
}

func (g *ChromemGateway) GetOrCreateCollection(ctx context.Context, name string) error {
	_, err := g.collection(name)
	return err
}

func (g *ChromemGateway) collection(name string) (*chromem.Collection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.collections[name]; ok {
		return c, nil
	}
	c, err := g.db.GetOrCreateCollection(name, nil, g.embedder)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get or create collection %q: %w", name, err)
	}
	g.collections[name] = c
	return c, nil
}

func (g *ChromemGateway) Add(ctx context.Context, collection string, docs []Document) error {
	c, err := g.collection(collection)
	if err != nil {
		return err
	}
	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	if err := c.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("vectorstore: add to %q: %w", collection, err)
	}
	g.invalidate(collection)
	return nil
}

func (g *ChromemGateway) Query(ctx context.Context, collection, queryText string, nResults int, where map[string]string) ([]core.SearchResult, error) {
	key := queryCacheKey{collection: collection, query: queryText, n: nResults}
	if where == nil {
		if cached, ok := g.cache.Get(key); ok {
			return cached, nil
		}
	}

	c, err := g.collection(collection)
	if err != nil {
		return nil, err
	}
	count := c.Count()
	if count == 0 {
		return []core.SearchResult{}, nil
	}
	if nResults > count {
		nResults = count
	}
	results, err := c.Query(ctx, queryText, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query %q: %w", collection, err)
	}

	out := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		md := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		out = append(out, core.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: md,
		})
	}
	if where == nil {
		g.cache.Add(key, out)
	}
	return out, nil
}

func (g *ChromemGateway) Count(ctx context.Context, collection string) (int, error) {
	c, err := g.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func (g *ChromemGateway) invalidate(collection string) {
	for _, k := range g.cache.Keys() {
		if k.collection == collection {
			g.cache.Remove(k)
		}
	}
}
