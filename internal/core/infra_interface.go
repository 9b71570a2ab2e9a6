package core

import (
	"context"

	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/models"
)

// DbClient defines all persistence operations the handlers and pipelines
// need. It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolderByID(ctx context.Context, id string) (*models.Folder, error)
	ListFoldersByOwner(ctx context.Context, owner string) ([]models.Folder, error)
	DeleteFolder(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByOwner(ctx context.Context, owner string) ([]models.DocumentListing, error)
	ListDocumentsByFolder(ctx context.Context, folderID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ToggleDocumentActive(ctx context.Context, id, owner string) (bool, error)
	SumDocumentSizesByOwner(ctx context.Context, owner string) (int64, error)

	// Chunk persistence shared by personal and shared ingestion. shared
	// selects between document_chunks and shared_document_chunks.
	ResetChunks(ctx context.Context, docID string, shared bool) error
	PersistChunks(ctx context.Context, docID string, shared bool, chunks []models.DocumentChunk) error

	CreateSharedFolder(ctx context.Context, folder *models.SharedFolder) error
	GetSharedFolderByID(ctx context.Context, id string) (*models.SharedFolder, error)
	ListSharedFolders(ctx context.Context, department string) ([]models.SharedFolderListing, error)
	RenameSharedFolder(ctx context.Context, id, name string) error
	DeleteSharedFolder(ctx context.Context, id string) error

	CreateSharedDocument(ctx context.Context, doc *models.SharedDocument) error
	GetSharedDocumentByID(ctx context.Context, id string) (*models.SharedDocument, error)
	ListSharedDocuments(ctx context.Context, caller, department string, admin bool) ([]models.SharedDocumentListing, error)
	ListSharedDocumentsByFolder(ctx context.Context, folderID string) ([]models.SharedDocument, error)
	DeleteSharedDocument(ctx context.Context, id string) error
	ToggleSharedVisibility(ctx context.Context, id string) (bool, error)
	ToggleSharedRAG(ctx context.Context, id string) (bool, error)
	ToggleUserSharedPref(ctx context.Context, userEmail, docID string) (bool, error)
	SumSharedDocumentSizes(ctx context.Context) (int64, error)

	SearchChunks(ctx context.Context, embedding []float32, scope retrieval.Scope, topK int) ([]models.ScoredChunk, error)

	Close() error
}

// ObjectClient defines interactions with the blob store. Objects are keyed
// by an opaque locator string; the backing bucket is fixed per process.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
