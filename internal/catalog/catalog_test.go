package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/embedding"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSearcher struct {
	results []SearchResult
	err     error
	calls   int
	opts    SearchOptions
}

func (f *fakeSearcher) Search(ctx context.Context, vector pgvector.Vector, opts SearchOptions) ([]SearchResult, error) {
	f.calls++
	f.opts = opts
	return f.results, f.err
}

type fakeUpserter struct {
	items []Item
	err   error
}

func (f *fakeUpserter) Upsert(ctx context.Context, item *Item) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, *item)
	return nil
}

func TestSearchResultCandidate(t *testing.T) {
	listedAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	price := 120.0
	item := Item{
		ID:       uuid.MustParse("6f1c2d4e-1111-4a4a-9b9b-000000000001"),
		Title:    "Blue bowl",
		Category: "ceramics",
		Style:    "minimal",
		Price:    &price,
		ListedAt: listedAt,
	}

	tests := []struct {
		name     string
		distance float64
		wantBase float64
	}{
		{"identical", 0, 1},
		{"close", 0.25, 0.75},
		{"orthogonal", 1, 0},
		{"opposite clamps to zero", 1.6, 0},
		{"negative distance clamps to one", -0.1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SearchResult{Item: item, Distance: tt.distance}.Candidate()
			require.NotNil(t, c.BaseScore)
			assert.InDelta(t, tt.wantBase, *c.BaseScore, 1e-9)
			assert.Equal(t, item.ID.String(), c.ItemID)
			assert.Equal(t, "ceramics", c.Category)
			assert.Equal(t, listedAt, c.Timestamp)
			assert.Equal(t, &price, c.Price)
		})
	}
}

func TestSearchResultCandidateUndefinedDistance(t *testing.T) {
	c := SearchResult{Item: Item{ID: uuid.New(), Category: "prints"}, Distance: math.NaN()}.Candidate()
	assert.Nil(t, c.BaseScore)
	assert.Equal(t, "prints", c.Category)
}

func TestBuildSearchQuery(t *testing.T) {
	vec := pgvector.NewVector([]float32{1, 0})

	tests := []struct {
		name         string
		opts         SearchOptions
		wantArgs     int
		wantContains []string
		wantMissing  []string
	}{
		{
			name:         "plain",
			opts:         SearchOptions{Limit: 10},
			wantArgs:     2,
			wantContains: []string{"ORDER BY embedding <=> $1", "LIMIT $2"},
			wantMissing:  []string{"owner_id <>", "category ="},
		},
		{
			name:         "exclude owner",
			opts:         SearchOptions{Limit: 10, ExcludeOwner: "u1"},
			wantArgs:     3,
			wantContains: []string{"owner_id <> $2", "LIMIT $3"},
		},
		{
			name:         "exclude owner and category",
			opts:         SearchOptions{Limit: 5, ExcludeOwner: "u1", Category: "prints"},
			wantArgs:     4,
			wantContains: []string{"owner_id <> $2", "category = $3", "LIMIT $4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildSearchQuery(vec, tt.opts)
			assert.Len(t, args, tt.wantArgs)
			for _, s := range tt.wantContains {
				assert.Contains(t, query, s)
			}
			for _, s := range tt.wantMissing {
				assert.NotContains(t, query, s)
			}
		})
	}
}

func TestBuildSearchQueryDefaultLimit(t *testing.T) {
	_, args := buildSearchQuery(pgvector.NewVector([]float32{1}), SearchOptions{})
	assert.Equal(t, 20, args[len(args)-1])
}

func TestBuildQuery(t *testing.T) {
	profile := personalization.UserProfile{
		Insights: personalization.InsightSet{
			ColorPreferences: map[string]float64{"blue": 0.4, "green": 0.2, "amber": 0.2, "red": 0.1, "white": 0.1},
		},
		DominantCharacteristics: personalization.DominantCharacteristics{
			PrimaryCategory: "ceramics",
			PrimaryStyle:    "minimal",
		},
	}

	tests := []struct {
		name    string
		profile personalization.UserProfile
		reqCtx  RequestContext
		want    string
	}{
		{
			name:    "profile only",
			profile: profile,
			want:    "minimal ceramics in blue, amber, green",
		},
		{
			name:    "profile with context",
			profile: profile,
			reqCtx:  RequestContext{Text: "vase", Mood: "calm", Budget: "under 100", Page: "home"},
			want:    "vase minimal ceramics in blue, amber, green mood: calm budget: under 100 browsing: home",
		},
		{
			name: "empty profile and context",
			want: "popular handmade art and design",
		},
		{
			name:   "context only",
			reqCtx: RequestContext{Mood: "  bright "},
			want:   "mood: bright",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.profile, tt.reqCtx))
		})
	}
}

func TestRetrieverRetrieve(t *testing.T) {
	searcher := &fakeSearcher{
		results: []SearchResult{
			{Item: Item{ID: uuid.New(), Title: "a", Category: "prints"}, Distance: 0.1},
			{Item: Item{ID: uuid.New(), Title: "b", Category: "ceramics"}, Distance: 0.3},
		},
	}
	embedder := embedding.NewMockClient(8)
	retriever := NewRetriever(embedder, searcher, RetrieverConfig{FailureThreshold: 3, OpenTimeout: time.Minute}, testLogger())

	profile := personalization.UserProfile{UserID: "u1"}
	candidates, err := retriever.Retrieve(context.Background(), profile, RequestContext{Text: "print", ExcludeUser: "u1"}, 15)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "a", candidates[0].Title)
	assert.InDelta(t, 0.9, *candidates[0].BaseScore, 1e-9)
	assert.Equal(t, 15, searcher.opts.Limit)
	assert.Equal(t, "u1", searcher.opts.ExcludeOwner)
	assert.Equal(t, []string{"print"}, embedder.Calls)
}

func TestRetrieverOpensAfterConsecutiveFailures(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	var transitions []gobreaker.State
	retriever := NewRetriever(embedding.NewMockClient(8), searcher, RetrieverConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		OnStateChange: func(from, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	}, testLogger())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := retriever.Retrieve(ctx, personalization.UserProfile{}, RequestContext{}, 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, retriever.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	// Open breaker fails fast without touching the catalog
	_, err := retriever.Retrieve(ctx, personalization.UserProfile{}, RequestContext{}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, 2, searcher.calls)
}

func TestRetrieverEmbeddingFailure(t *testing.T) {
	embedder := embedding.NewMockClient(8)
	embedder.EmbedFunc = func(ctx context.Context, text string) (pgvector.Vector, error) {
		return pgvector.Vector{}, errors.New("model not loaded")
	}
	searcher := &fakeSearcher{}
	retriever := NewRetriever(embedder, searcher, RetrieverConfig{}, testLogger())

	_, err := retriever.Retrieve(context.Background(), personalization.UserProfile{}, RequestContext{}, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, 0, searcher.calls)
}

const seedYAML = `
items:
  - title: Blue bowl
    category: ceramics
    style: minimal
    artist: Aino
    colors: [blue, white]
    price: 45
    listed_at: 2025-05-01
  - id: 6f1c2d4e-1111-4a4a-9b9b-000000000002
    title: Harbor print
    category: prints
    owner: u7
    listed_at: 2025-05-20T08:00:00Z
`

func TestLoadCatalogFromBytes(t *testing.T) {
	items, err := LoadCatalogFromBytes([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Blue bowl", items[0].Title)
	assert.Equal(t, []string{"blue", "white"}, items[0].Colors)
	require.NotNil(t, items[0].Price)
	assert.Equal(t, 45.0, *items[0].Price)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), items[0].ListedAt)
	assert.NotEqual(t, uuid.Nil, items[0].ID)

	assert.Equal(t, "6f1c2d4e-1111-4a4a-9b9b-000000000002", items[1].ID.String())
	assert.Equal(t, "u7", items[1].OwnerID)
	assert.Nil(t, items[1].Price)

	again, err := LoadCatalogFromBytes([]byte(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, again[0].ID, "derived ids should be stable")
}

func TestLoadCatalogFromBytesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing title", "items:\n  - category: prints\n"},
		{"bad id", "items:\n  - title: x\n    id: not-a-uuid\n"},
		{"bad listed_at", "items:\n  - title: x\n    listed_at: yesterday\n"},
		{"not yaml", "items: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalogFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	items, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	items, err := LoadCatalogFromBytes([]byte(seedYAML))
	require.NoError(t, err)

	embedder := embedding.NewMockClient(4)
	store := &fakeUpserter{}

	stored, err := Seed(context.Background(), items, embedder, store, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	require.Len(t, store.items, 2)
	assert.Len(t, store.items[0].Embedding.Slice(), 4)
	assert.True(t, strings.HasPrefix(embedder.Calls[0], "Blue bowl minimal ceramics Aino in blue, white"))

	failing := &fakeUpserter{err: errors.New("disk full")}
	stored, err = Seed(context.Background(), items, embedder, failing, testLogger())
	assert.Error(t, err)
	assert.Equal(t, 0, stored)
}

func TestStoreUpsertRejectsWrongDimensions(t *testing.T) {
	store := NewStore(nil, 8, testLogger())
	item := &Item{Title: "x", Embedding: pgvector.NewVector([]float32{1, 2})}
	err := store.Upsert(context.Background(), item)
	assert.Error(t, err)
}

func setupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("CURATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CURATOR_TEST_POSTGRES_DSN not set, skipping database test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test: cannot open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}

	for _, stmt := range Schema(4) {
		if _, err := db.Exec(stmt); err != nil {
			t.Skipf("Skipping test: cannot create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM catalog_items WHERE owner_id = 'catalog-test'`)
		db.Close()
	})
	return db
}

func TestStoreSearchIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, 4, testLogger())
	ctx := context.Background()

	near := &Item{Title: "near", OwnerID: "catalog-test", Embedding: pgvector.NewVector([]float32{1, 0, 0, 0})}
	far := &Item{Title: "far", OwnerID: "catalog-test", Embedding: pgvector.NewVector([]float32{0, 1, 0, 0})}
	require.NoError(t, store.Upsert(ctx, near))
	require.NoError(t, store.Upsert(ctx, far))

	results, err := store.Search(ctx, pgvector.NewVector([]float32{1, 0.1, 0, 0}), SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "near", results[0].Item.Title)
}
