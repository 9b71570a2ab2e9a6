package models

import (
	"time"
)

// Embedding status values for a chunk. A chunk row always exists once
// ingestion reached it; the status says whether the vector call succeeded.
const (
	EmbedPending  = "pending"
	EmbedEmbedded = "embedded"
	EmbedFailed   = "failed"
)

// Chunk origin tags used in citations.
const (
	SourcePersonal = "personal"
	SourceShared   = "shared"
)

// User represents an authenticated user of the system. Department is empty
// for users that have not been assigned to one; such users see no shared
// documents.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Department   string    `db:"department" json:"department"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Folder groups a user's own documents. Deleting a folder cascades to its
// documents and their chunks.
type Folder struct {
	ID         string    `db:"id" json:"id"`
	OwnerEmail string    `db:"owner_email" json:"owner_email"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Document is the metadata row for a user-uploaded file. ChunkCount stays 0
// until an ingestion run completes; a document stuck at 0 needs a reprocess.
type Document struct {
	ID               string    `db:"id" json:"id"`
	OwnerEmail       string    `db:"owner_email" json:"owner_email"`
	FolderID         *string   `db:"folder_id" json:"folder_id,omitempty"`
	OriginalFilename string    `db:"original_filename" json:"filename"`
	StoragePath      string    `db:"storage_path" json:"-"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	ChunkCount       int       `db:"chunk_count" json:"chunk_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk is one overlapping text window of a document's extracted
// text. Embedding is nil when the vector call failed or is still pending;
// such chunks are kept for audit and reprocess but excluded from search.
type DocumentChunk struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	Content     string    `db:"content" json:"content"`
	Embedding   []float32 `db:"embedding" json:"-"`
	EmbedStatus string    `db:"embed_status" json:"embed_status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SharedFolder groups organization-wide documents and pins them to a
// department; only callers of that department (or admins) see its contents.
type SharedFolder struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SharedDocument is an admin-managed document. IsVisible hides it everywhere;
// IsRAGActive keeps it listed but out of retrieval.
type SharedDocument struct {
	ID               string    `db:"id" json:"id"`
	FolderID         string    `db:"folder_id" json:"folder_id"`
	OriginalFilename string    `db:"original_filename" json:"filename"`
	StoragePath      string    `db:"storage_path" json:"-"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	IsVisible        bool      `db:"is_visible" json:"is_visible"`
	IsRAGActive      bool      `db:"is_rag_active" json:"is_rag_active"`
	ChunkCount       int       `db:"chunk_count" json:"chunk_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// UserSharedDocPref is a per-(caller, shared document) retrieval opt-out.
// Absence of a row means the default: included. Rows are created lazily on
// the first toggle, never for the default value.
type UserSharedDocPref struct {
	UserEmail   string `db:"user_email" json:"user_email"`
	DocID       string `db:"doc_id" json:"doc_id"`
	IsRAGActive bool   `db:"is_rag_active" json:"is_rag_active"`
}

// DocumentListing is a Document plus the number of chunks that actually
// carry a vector; chunk_count != embedded_count means partially embedded.
type DocumentListing struct {
	Document
	EmbeddedCount int `json:"embedded_count"`
}

// SharedDocumentListing adds the caller's personal opt-out state.
type SharedDocumentListing struct {
	SharedDocument
	EmbeddedCount int  `json:"embedded_count"`
	UserRAGActive bool `json:"user_rag_active"`
}

// SharedFolderListing carries the per-folder aggregates shown in listings.
type SharedFolderListing struct {
	SharedFolder
	DocCount  int   `json:"doc_count"`
	TotalSize int64 `json:"total_size"`
}

// ScoredChunk is one row of a ranked similarity query. Lower distance means
// more similar.
type ScoredChunk struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Distance   float64 `json:"distance"`
}

// Citation points a chat answer back at the chunk it came from.
type Citation struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Excerpt    string `json:"excerpt"`
	Source     string `json:"source"`
}
