package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/models"
)

// SearchChunks runs one ranked cosine-distance query over the union of the
// scope's eligible personal and shared chunks, returning the topK closest
// rows across the combined set.
func (c *DatabaseClient) SearchChunks(ctx context.Context, embedding []float32, scope retrieval.Scope, topK int) ([]models.ScoredChunk, error) {
	q, args := buildSearchQuery(pgvector.NewVector(embedding), scope, topK)
	if q == "" {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredChunk
	for rows.Next() {
		var s models.ScoredChunk
		if err := rows.Scan(&s.DocumentID, &s.Filename, &s.ChunkIndex, &s.Content, &s.Source, &s.Distance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// buildSearchQuery assembles the UNION ALL similarity query for a scope.
// Both arms filter to successfully embedded chunks; the shared arm applies
// the visibility and retrieval kill switches identically for admins and
// regular callers, subtracts personal opt-outs, and restricts to the
// caller's department unless the scope spans all departments.
func buildSearchQuery(vec pgvector.Vector, scope retrieval.Scope, topK int) (string, []any) {
	var arms []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	vecArg := arg(vec)
	callerArg := arg(scope.CallerEmail)

	if scope.IncludePersonal {
		arms = append(arms, fmt.Sprintf(`
			SELECT d.id AS document_id, d.original_filename, dc.chunk_index, dc.content,
			       'personal' AS source, dc.embedding <=> %s AS distance
			FROM document_chunks dc
			JOIN documents d ON d.id = dc.document_id
			WHERE d.owner_email = %s
			  AND d.is_active
			  AND dc.embed_status = 'embedded'
			  AND dc.embedding IS NOT NULL`,
			vecArg, callerArg))
	}

	if scope.IncludeShared {
		deptClause := "TRUE"
		if !scope.AllDepartments {
			deptClause = fmt.Sprintf("f.department = %s", arg(scope.Department))
		}
		arms = append(arms, fmt.Sprintf(`
			SELECT d.id AS document_id, d.original_filename, dc.chunk_index, dc.content,
			       'shared' AS source, dc.embedding <=> %s AS distance
			FROM shared_document_chunks dc
			JOIN shared_documents d ON d.id = dc.document_id
			JOIN shared_folders f ON f.id = d.folder_id
			WHERE d.is_visible
			  AND d.is_rag_active
			  AND %s
			  AND dc.embed_status = 'embedded'
			  AND dc.embedding IS NOT NULL
			  AND NOT EXISTS (
			      SELECT 1 FROM user_shared_doc_prefs p
			      WHERE p.user_email = %s AND p.doc_id = d.id AND NOT p.is_rag_active
			  )`,
			vecArg, deptClause, callerArg))
	}

	if len(arms) == 0 {
		return "", nil
	}

	q := fmt.Sprintf(`
		SELECT document_id, original_filename, chunk_index, content, source, distance
		FROM (%s) hits
		ORDER BY distance ASC
		LIMIT %s`,
		strings.Join(arms, "\nUNION ALL\n"), arg(topK))
	return q, args
}
