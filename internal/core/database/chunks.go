package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/corpora/internal/models"
)

func chunkTables(shared bool) (chunkTable, docTable string) {
	if shared {
		return "shared_document_chunks", "shared_documents"
	}
	return "document_chunks", "documents"
}

// ResetChunks deletes every chunk of a document and resets its chunk_count
// to 0 in one transaction. Reprocessing calls this before re-running
// ingestion so no orphaned or stale rows survive.
func (c *DatabaseClient) ResetChunks(ctx context.Context, docID string, shared bool) error {
	chunkTable, docTable := chunkTables(shared)

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, chunkTable), docID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET chunk_count = 0 WHERE id = $1`, docTable), docID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("reset chunk_count: %w", err)
	}
	return tx.Commit()
}

// PersistChunks writes the chunk rows of one completed ingestion run and the
// resulting chunk_count in a single transaction, so readers never observe a
// count that disagrees with the rows. Chunks without a vector are stored
// with a NULL embedding and their failed/pending status.
func (c *DatabaseClient) PersistChunks(ctx context.Context, docID string, shared bool, chunks []models.DocumentChunk) error {
	chunkTable, docTable := chunkTables(shared)

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		INSERT INTO %s
			(id, document_id, chunk_index, content, embedding, embed_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, chunkTable)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]

		var vec any
		if ch.Embedding != nil {
			vec = pgvector.NewVector(ch.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, docID, ch.ChunkIndex, ch.Content, vec, ch.EmbedStatus, nullableTime(ch.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET chunk_count = $2 WHERE id = $1`, docTable),
		docID, len(chunks)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set chunk_count: %w", err)
	}
	return tx.Commit()
}
