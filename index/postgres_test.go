package index

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/database"
)

func TestPostgresBuilderRequiresPool(t *testing.T) {
	_, err := NewPostgresBuilder(nil, &keywordEmbedder{}, 3, nil).Build(context.Background(), testDocs(), "v1")
	assert.ErrorIs(t, err, ErrBuild)
}

func TestPostgresIndexRoundTrip(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database integration checks")
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/symptom-agent?sslmode=disable"
	}
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	emb := &keywordEmbedder{keywords: []string{"cramps", "night", "emergency"}}
	docs := testDocs()
	version := corpus.Version(docs)

	t.Cleanup(func() {
		_ = database.TruncateKnowledge(ctx, pool)
	})

	builder := NewPostgresBuilder(pool, emb, len(emb.keywords), zaptest.NewLogger(t))
	idx, err := builder.Build(ctx, docs, version)
	require.NoError(t, err)

	results, err := idx.Search(ctx, "pain at night", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Timing", results[0].GroupName)
	assert.Equal(t, docs[1], results[0])

	calls := emb.calls
	_, err = builder.Build(ctx, docs, version)
	require.NoError(t, err)
	assert.Equal(t, calls, emb.calls, "an already indexed version is not re-embedded")
}
