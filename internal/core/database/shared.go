package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/corpora/internal/models"
)

// Shared folders

func (c *DatabaseClient) CreateSharedFolder(ctx context.Context, folder *models.SharedFolder) error {
	if folder == nil {
		return errors.New("nil shared folder")
	}
	const q = `
		INSERT INTO shared_folders (id, name, department, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`
	_, err := c.db.ExecContext(ctx, q, folder.ID, folder.Name, folder.Department, nullableTime(folder.CreatedAt))
	return err
}

func (c *DatabaseClient) GetSharedFolderByID(ctx context.Context, id string) (*models.SharedFolder, error) {
	const q = `SELECT id, name, department, created_at FROM shared_folders WHERE id = $1`
	var f models.SharedFolder
	err := c.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.Name, &f.Department, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListSharedFolders returns folders with their document count and byte
// total. department == "" lists all folders (admin); otherwise only the
// folders of that department.
func (c *DatabaseClient) ListSharedFolders(ctx context.Context, department string) ([]models.SharedFolderListing, error) {
	q := `
		SELECT f.id, f.name, f.department, f.created_at,
		       COUNT(d.id) AS doc_count,
		       COALESCE(SUM(d.file_size), 0) AS total_size
		FROM shared_folders f
		LEFT JOIN shared_documents d ON d.folder_id = f.id
	`
	var args []any
	if department != "" {
		q += ` WHERE f.department = $1`
		args = append(args, department)
	}
	q += ` GROUP BY f.id ORDER BY f.created_at ASC`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SharedFolderListing
	for rows.Next() {
		var l models.SharedFolderListing
		if err := rows.Scan(&l.ID, &l.Name, &l.Department, &l.CreatedAt, &l.DocCount, &l.TotalSize); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) RenameSharedFolder(ctx context.Context, id, name string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE shared_folders SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("shared folder not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteSharedFolder(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM shared_folders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("shared folder not found: %s", id)
	}
	return nil
}

// Shared documents

func (c *DatabaseClient) CreateSharedDocument(ctx context.Context, doc *models.SharedDocument) error {
	if doc == nil {
		return errors.New("nil shared document")
	}
	const q = `
		INSERT INTO shared_documents
			(id, folder_id, original_filename, storage_path, file_size, mime_type, is_visible, is_rag_active, chunk_count, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.FolderID, doc.OriginalFilename, doc.StoragePath, doc.FileSize,
		doc.MimeType, doc.IsVisible, doc.IsRAGActive, doc.ChunkCount, nullableTime(doc.CreatedAt))
	return err
}

func (c *DatabaseClient) GetSharedDocumentByID(ctx context.Context, id string) (*models.SharedDocument, error) {
	const q = `
		SELECT id, folder_id, original_filename, storage_path, file_size, mime_type, is_visible, is_rag_active, chunk_count, created_at
		FROM shared_documents
		WHERE id = $1
	`
	var d models.SharedDocument
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.FolderID, &d.OriginalFilename, &d.StoragePath, &d.FileSize,
		&d.MimeType, &d.IsVisible, &d.IsRAGActive, &d.ChunkCount, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListSharedDocuments returns the documents the caller may see, together
// with the embedded chunk count and the caller's personal opt-out state
// (default included). Admins see every document; regular callers only
// visible documents of their department, and none without a department.
func (c *DatabaseClient) ListSharedDocuments(ctx context.Context, caller, department string, admin bool) ([]models.SharedDocumentListing, error) {
	if !admin && department == "" {
		return nil, nil
	}

	q := `
		SELECT d.id, d.folder_id, d.original_filename, d.storage_path, d.file_size,
		       d.mime_type, d.is_visible, d.is_rag_active, d.chunk_count, d.created_at,
		       COUNT(dc.id) FILTER (WHERE dc.embed_status = 'embedded') AS embedded_count,
		       COALESCE(MIN(p.is_rag_active::int), 1)::bool AS user_rag_active
		FROM shared_documents d
		LEFT JOIN shared_document_chunks dc ON dc.document_id = d.id
		LEFT JOIN user_shared_doc_prefs p ON p.doc_id = d.id AND p.user_email = $1
	`
	args := []any{caller}
	if !admin {
		q += `
		JOIN shared_folders f ON f.id = d.folder_id
		WHERE f.department = $2 AND d.is_visible
		`
		args = append(args, department)
	}
	q += ` GROUP BY d.id ORDER BY d.created_at DESC`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SharedDocumentListing
	for rows.Next() {
		var l models.SharedDocumentListing
		if err := rows.Scan(
			&l.ID, &l.FolderID, &l.OriginalFilename, &l.StoragePath, &l.FileSize,
			&l.MimeType, &l.IsVisible, &l.IsRAGActive, &l.ChunkCount, &l.CreatedAt,
			&l.EmbeddedCount, &l.UserRAGActive,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListSharedDocumentsByFolder(ctx context.Context, folderID string) ([]models.SharedDocument, error) {
	const q = `
		SELECT id, folder_id, original_filename, storage_path, file_size, mime_type, is_visible, is_rag_active, chunk_count, created_at
		FROM shared_documents
		WHERE folder_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SharedDocument
	for rows.Next() {
		var d models.SharedDocument
		if err := rows.Scan(
			&d.ID, &d.FolderID, &d.OriginalFilename, &d.StoragePath, &d.FileSize,
			&d.MimeType, &d.IsVisible, &d.IsRAGActive, &d.ChunkCount, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteSharedDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM shared_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("shared document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) ToggleSharedVisibility(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE shared_documents SET is_visible = NOT is_visible WHERE id = $1 RETURNING is_visible`
	var visible bool
	err := c.db.QueryRowContext(ctx, q, id).Scan(&visible)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("shared document not found: %s", id)
	}
	return visible, err
}

func (c *DatabaseClient) ToggleSharedRAG(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE shared_documents SET is_rag_active = NOT is_rag_active WHERE id = $1 RETURNING is_rag_active`
	var active bool
	err := c.db.QueryRowContext(ctx, q, id).Scan(&active)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("shared document not found: %s", id)
	}
	return active, err
}

// ToggleUserSharedPref flips the caller's per-document retrieval preference.
// The row is created lazily: the first toggle writes false (the default was
// included), later toggles flip the stored value.
func (c *DatabaseClient) ToggleUserSharedPref(ctx context.Context, userEmail, docID string) (bool, error) {
	const q = `
		INSERT INTO user_shared_doc_prefs (user_email, doc_id, is_rag_active)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (user_email, doc_id)
		DO UPDATE SET is_rag_active = NOT user_shared_doc_prefs.is_rag_active
		RETURNING is_rag_active
	`
	var active bool
	err := c.db.QueryRowContext(ctx, q, userEmail, docID).Scan(&active)
	return active, err
}

func (c *DatabaseClient) SumSharedDocumentSizes(ctx context.Context) (int64, error) {
	var total int64
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(file_size), 0) FROM shared_documents`).Scan(&total)
	return total, err
}
