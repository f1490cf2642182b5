package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/embeddings"
	"github.com/fabfab/symptom-agent/logging"
)

// MemoryBuilder embeds the corpus once and keeps the vectors in process.
type MemoryBuilder struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

func NewMemoryBuilder(embedder embeddings.Embedder, logger *zap.Logger) *MemoryBuilder {
	return &MemoryBuilder{embedder: embedder, logger: logging.OrNop(logger)}
}

type memoryIndex struct {
	embedder embeddings.Embedder
	docs     []corpus.Document
	vectors  [][]float32
	norms    []float64
}

func (b *MemoryBuilder) Build(ctx context.Context, docs []corpus.Document, version string) (Index, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("%w: embedder is not configured", ErrBuild)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to index", ErrBuild)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed documents: %w", ErrBuild, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: embedding count mismatch: have %d documents, %d embeddings", ErrBuild, len(docs), len(vectors))
	}

	idx := &memoryIndex{
		embedder: b.embedder,
		docs:     append([]corpus.Document(nil), docs...),
		vectors:  vectors,
		norms:    make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		idx.norms[i] = norm(v)
	}

	b.logger.Info("built in-memory knowledge index",
		zap.Int("documents", len(docs)),
		zap.String("version", shortVersion(version)))
	return idx, nil
}

func (m *memoryIndex) Search(ctx context.Context, query string, topK int) ([]corpus.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrievalUnavailable, err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", ErrRetrievalUnavailable)
	}
	q := vecs[0]
	qNorm := norm(q)

	type scored struct {
		pos   int
		score float64
	}
	ranked := make([]scored, len(m.docs))
	for i, v := range m.vectors {
		ranked[i] = scored{pos: i, score: cosine(q, qNorm, v, m.norms[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	limit := clampTopK(topK, len(ranked))
	results := make([]corpus.Document, 0, limit)
	for _, r := range ranked[:limit] {
		results = append(results, m.docs[r.pos])
	}
	return results, nil
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

var _ Builder = (*MemoryBuilder)(nil)
