package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/arnaud-morvan/v6-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictFromPg(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped duplicate", fmt.Errorf("insert version: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"no rows", pgx.ErrNoRows, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConflictFromPg(tt.err)
			if !tt.conflict {
				assert.Same(t, tt.err, got)
				return
			}
			var conflict *domain.ConflictError
			require.ErrorAs(t, got, &conflict)
			assert.ErrorIs(t, got, domain.ErrConflict)
		})
	}
}

func TestPgErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", &pgconn.PgError{Code: "23503"})
	assert.True(t, IsPgForeignKeyError(wrapped))
	assert.False(t, IsPgDuplicateError(wrapped))
	assert.True(t, IsPgNoRowsError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsPgSerializationError(errors.New("boom")))
}

func TestNewTableNames(t *testing.T) {
	tables := NewTableNames("test_")

	assert.Equal(t, "test_documents", tables.Documents)
	assert.Equal(t, "test_document_versions", tables.Versions)
	assert.Equal(t, "test_archive_document_geometries", tables.ArchiveGeometries)

	all := tables.All()
	assert.Len(t, all, 9)
	assert.Equal(t, tables.Versions, all[0])
	assert.Equal(t, tables.Documents, all[len(all)-1])
	for _, name := range all {
		assert.Contains(t, name, "test_")
	}
}
