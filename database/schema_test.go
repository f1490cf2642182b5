package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	stmts  []string
	failOn int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	if r.failOn > 0 && len(r.stmts) == r.failOn {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.CommandTag{}, nil
}

func TestEnsureKnowledgeSchemaRejectsInvalidDimension(t *testing.T) {
	err := EnsureKnowledgeSchema(context.Background(), &recordingExecer{}, 0)
	assert.Error(t, err)
}

func TestEnsureKnowledgeSchemaUsesDimension(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, EnsureKnowledgeSchema(context.Background(), db, 384))

	require.NotEmpty(t, db.stmts)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS vector", db.stmts[0])

	var found bool
	for _, s := range db.stmts {
		if strings.Contains(s, "VECTOR(384)") {
			found = true
		}
	}
	assert.True(t, found, "expected the embedding column to use the configured dimension")
}

func TestEnsureKnowledgeSchemaStopsOnError(t *testing.T) {
	db := &recordingExecer{failOn: 2}
	err := EnsureKnowledgeSchema(context.Background(), db, 3)
	require.Error(t, err)
	assert.Len(t, db.stmts, 2)
}
