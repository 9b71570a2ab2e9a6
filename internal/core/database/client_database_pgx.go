package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, department, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.PasswordHash, user.Department, nullableTime(user.CreatedAt))
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, department, created_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Department, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Personal folders

func (c *DatabaseClient) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if folder == nil {
		return errors.New("nil folder")
	}
	const q = `
		INSERT INTO folders (id, owner_email, name, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`
	_, err := c.db.ExecContext(ctx, q, folder.ID, folder.OwnerEmail, folder.Name, nullableTime(folder.CreatedAt))
	return err
}

func (c *DatabaseClient) GetFolderByID(ctx context.Context, id string) (*models.Folder, error) {
	const q = `SELECT id, owner_email, name, created_at FROM folders WHERE id = $1`
	var f models.Folder
	err := c.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.OwnerEmail, &f.Name, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *DatabaseClient) ListFoldersByOwner(ctx context.Context, owner string) ([]models.Folder, error) {
	const q = `
		SELECT id, owner_email, name, created_at
		FROM folders
		WHERE owner_email = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.OwnerEmail, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFolder removes the folder row; contained documents and their chunks
// go with it via ON DELETE CASCADE. Blob deletes happen at the call site
// before this, since the storage paths are gone afterwards.
func (c *DatabaseClient) DeleteFolder(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("folder not found: %s", id)
	}
	return nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, owner_email, folder_id, original_filename, storage_path, file_size, mime_type, is_active, chunk_count, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.OwnerEmail, doc.FolderID, doc.OriginalFilename, doc.StoragePath,
		doc.FileSize, doc.MimeType, doc.IsActive, doc.ChunkCount, nullableTime(doc.CreatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, owner_email, folder_id, original_filename, storage_path, file_size, mime_type, is_active, chunk_count, created_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.OwnerEmail, &d.FolderID, &d.OriginalFilename, &d.StoragePath,
		&d.FileSize, &d.MimeType, &d.IsActive, &d.ChunkCount, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocumentsByOwner returns the owner's documents newest first, each with
// the count of chunks whose embedding actually succeeded.
func (c *DatabaseClient) ListDocumentsByOwner(ctx context.Context, owner string) ([]models.DocumentListing, error) {
	const q = `
		SELECT d.id, d.owner_email, d.folder_id, d.original_filename, d.storage_path,
		       d.file_size, d.mime_type, d.is_active, d.chunk_count, d.created_at,
		       COUNT(dc.id) FILTER (WHERE dc.embed_status = 'embedded') AS embedded_count
		FROM documents d
		LEFT JOIN document_chunks dc ON dc.document_id = d.id
		WHERE d.owner_email = $1
		GROUP BY d.id
		ORDER BY d.created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentListing
	for rows.Next() {
		var l models.DocumentListing
		if err := rows.Scan(
			&l.ID, &l.OwnerEmail, &l.FolderID, &l.OriginalFilename, &l.StoragePath,
			&l.FileSize, &l.MimeType, &l.IsActive, &l.ChunkCount, &l.CreatedAt,
			&l.EmbeddedCount,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListDocumentsByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	const q = `
		SELECT id, owner_email, folder_id, original_filename, storage_path, file_size, mime_type, is_active, chunk_count, created_at
		FROM documents
		WHERE folder_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.OwnerEmail, &d.FolderID, &d.OriginalFilename, &d.StoragePath,
			&d.FileSize, &d.MimeType, &d.IsActive, &d.ChunkCount, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) ToggleDocumentActive(ctx context.Context, id, owner string) (bool, error) {
	const q = `
		UPDATE documents SET is_active = NOT is_active
		WHERE id = $1 AND owner_email = $2
		RETURNING is_active
	`
	var active bool
	err := c.db.QueryRowContext(ctx, q, id, owner).Scan(&active)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("document not found: %s", id)
	}
	return active, err
}

func (c *DatabaseClient) SumDocumentSizesByOwner(ctx context.Context, owner string) (int64, error) {
	var total int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(file_size), 0) FROM documents WHERE owner_email = $1`, owner).
		Scan(&total)
	return total, err
}

// nullableTime maps the zero time to NULL so the column default applies.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
