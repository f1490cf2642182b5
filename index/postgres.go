package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/database"
	"github.com/fabfab/symptom-agent/embeddings"
	"github.com/fabfab/symptom-agent/logging"
)

// PostgresBuilder stores documents and their embeddings in pgvector. A corpus
// version already present in the database is reused without re-embedding.
type PostgresBuilder struct {
	pool      *pgxpool.Pool
	embedder  embeddings.Embedder
	dimension int
	logger    *zap.Logger
}

func NewPostgresBuilder(pool *pgxpool.Pool, embedder embeddings.Embedder, dimension int, logger *zap.Logger) *PostgresBuilder {
	return &PostgresBuilder{
		pool:      pool,
		embedder:  embedder,
		dimension: dimension,
		logger:    logging.OrNop(logger),
	}
}

type postgresIndex struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	version  string
}

func (b *PostgresBuilder) Build(ctx context.Context, docs []corpus.Document, version string) (_ Index, err error) {
	if b.pool == nil {
		return nil, fmt.Errorf("%w: postgres pool is nil", ErrBuild)
	}
	if b.embedder == nil {
		return nil, fmt.Errorf("%w: embedder is not configured", ErrBuild)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to index", ErrBuild)
	}
	if version == "" {
		version = corpus.Version(docs)
	}

	if err := database.EnsureKnowledgeSchema(ctx, b.pool, b.dimension); err != nil {
		return nil, fmt.Errorf("%w: ensure schema: %w", ErrBuild, err)
	}

	idx := &postgresIndex{pool: b.pool, embedder: b.embedder, version: version}

	stored, err := storedCount(ctx, b.pool, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if stored == len(docs) {
		b.logger.Info("reusing stored knowledge index",
			zap.String("version", shortVersion(version)),
			zap.Int("documents", stored))
		return idx, nil
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

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", ErrBuild, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				b.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	// Only one corpus version is live at a time; older rows cascade away.
	if _, err = tx.Exec(ctx, "DELETE FROM corpus_versions"); err != nil {
		return nil, fmt.Errorf("%w: clear previous versions: %w", ErrBuild, err)
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO corpus_versions (version, document_count, created_at)
		VALUES ($1, $2, NOW())
	`, version, len(docs)); err != nil {
		return nil, fmt.Errorf("%w: insert corpus version: %w", ErrBuild, err)
	}

	for i, d := range docs {
		var group *string
		if d.GroupName != "" {
			name := d.GroupName
			group = &name
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO symptom_documents (id, version, position, provenance, group_name, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`, uuid.New(), version, i, string(d.Provenance), group, d.Text, pgvector.NewVector(vectors[i])); err != nil {
			return nil, fmt.Errorf("%w: insert document %d: %w", ErrBuild, i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit transaction: %w", ErrBuild, err)
	}

	b.logger.Info("indexed corpus into postgres",
		zap.String("version", shortVersion(version)),
		zap.Int("documents", len(docs)))
	return idx, nil
}

func storedCount(ctx context.Context, pool *pgxpool.Pool, version string) (int, error) {
	var count int
	err := pool.QueryRow(ctx, "SELECT document_count FROM corpus_versions WHERE version = $1", version).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query corpus version: %w", err)
	}
	return count, nil
}

func (s *postgresIndex) Search(ctx context.Context, query string, topK int) ([]corpus.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrievalUnavailable, err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vectors", ErrRetrievalUnavailable)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrRetrievalUnavailable, err)
	}
	defer conn.Release()

	probes := topK * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("%w: set ivfflat probes: %w", ErrRetrievalUnavailable, err)
	}

	rows, err := conn.Query(ctx, `
		SELECT provenance, COALESCE(group_name, ''), content
		FROM symptom_documents
		WHERE version = $1
		ORDER BY embedding <-> $2::vector
		LIMIT $3
	`, s.version, pgvector.NewVector(vecs[0]), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query similar documents: %w", ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	results := make([]corpus.Document, 0, topK)
	for rows.Next() {
		var (
			doc        corpus.Document
			provenance string
		)
		if err := rows.Scan(&provenance, &doc.GroupName, &doc.Text); err != nil {
			return nil, fmt.Errorf("%w: scan similar document: %w", ErrRetrievalUnavailable, err)
		}
		doc.Provenance = corpus.Provenance(provenance)
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	return results, nil
}

var _ Builder = (*PostgresBuilder)(nil)
