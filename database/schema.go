package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool and pgx.Tx the schema needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureKnowledgeSchema creates the pgvector tables backing the knowledge
// index. corpus_versions holds one row per indexed corpus hash.
func EnsureKnowledgeSchema(ctx context.Context, db Execer, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if db == nil {
		return fmt.Errorf("postgres connection is nil")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS corpus_versions (
			version TEXT PRIMARY KEY,
			document_count INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS symptom_documents (
			id UUID PRIMARY KEY,
			version TEXT NOT NULL REFERENCES corpus_versions(version) ON DELETE CASCADE,
			position INT NOT NULL,
			provenance TEXT NOT NULL,
			group_name TEXT,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(version, position)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_symptom_documents_version ON symptom_documents(version)",
		"CREATE INDEX IF NOT EXISTS idx_symptom_documents_embedding ON symptom_documents USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// TruncateKnowledge removes every indexed corpus version and its documents.
func TruncateKnowledge(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, "TRUNCATE symptom_documents, corpus_versions"); err != nil {
		return fmt.Errorf("truncate knowledge tables: %w", err)
	}
	return nil
}
