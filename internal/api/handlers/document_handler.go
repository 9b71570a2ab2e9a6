package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	middleware "github.com/markdave123-py/corpora/internal/api/middlewares"
	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/core/ingest"
	"github.com/markdave123-py/corpora/internal/logger"
	"github.com/markdave123-py/corpora/internal/models"
)

// allowedExtensions is the upload allowlist. Files with any other extension
// are skipped rather than failing the whole batch.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".md":   true,
}

const maxUploadMemory = 32 << 20

type DocumentHandler struct {
	dbclient core.DbClient
	objs     core.ObjectClient
	ingestor *ingest.Ingestor
	cfg      *config.Config
	log      *logrus.Entry
}

func NewDocumentHandler(dbclient core.DbClient, objs core.ObjectClient, ingestor *ingest.Ingestor, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{
		dbclient: dbclient,
		objs:     objs,
		ingestor: ingestor,
		cfg:      cfg,
		log:      logger.New("documents"),
	}
}

type uploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	DocID    string `json:"doc_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Upload accepts one or more files under the "files" form field, stores each
// blob, records the document row and queues it for indexing. Disallowed file
// types are skipped; a quota breach rejects the remaining files.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	var folderID *string
	if fid := r.FormValue("folder_id"); fid != "" {
		folder, err := h.dbclient.GetFolderByID(r.Context(), fid)
		if err != nil || folder == nil || folder.OwnerEmail != email {
			writeError(w, http.StatusNotFound, "folder not found")
			return
		}
		folderID = &fid
	}

	used, err := h.dbclient.SumDocumentSizesByOwner(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not check storage usage")
		return
	}

	results := make([]uploadResult, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedExtensions[ext] {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "skipped", Reason: "unsupported file type"})
			continue
		}
		if used+fh.Size > h.cfg.UserStorageLimit {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "rejected", Reason: "storage limit exceeded"})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "unreadable file"})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "unreadable file"})
			continue
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mimetype.Detect(data).String()
		}

		key := email + "/" + strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + filepath.Base(fh.Filename)
		if err := h.objs.UploadFile(r.Context(), key, data, contentType); err != nil {
			h.log.WithError(err).WithField("file", fh.Filename).Error("blob upload failed")
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "storage error"})
			continue
		}

		doc := &models.Document{
			ID:               uuid.NewString(),
			OwnerEmail:       email,
			FolderID:         folderID,
			OriginalFilename: fh.Filename,
			StoragePath:      key,
			FileSize:         fh.Size,
			MimeType:         contentType,
			IsActive:         true,
			CreatedAt:        time.Now(),
		}
		if err := h.dbclient.CreateDocument(r.Context(), doc); err != nil {
			h.log.WithError(err).WithField("file", fh.Filename).Error("document insert failed")
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "database error"})
			continue
		}
		used += fh.Size

		if err := h.ingestor.Enqueue(ingest.Job{
			DocID:       doc.ID,
			StoragePath: doc.StoragePath,
			MimeType:    doc.MimeType,
		}); err != nil {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "queued_later", DocID: doc.ID, Reason: "indexing queue full, reprocess to retry"})
			continue
		}
		results = append(results, uploadResult{Filename: fh.Filename, Status: "processing", DocID: doc.ID})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"results": results})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	docs, err := h.dbclient.ListDocumentsByOwner(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []models.DocumentListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Delete removes the document row (chunks cascade) after a best-effort blob
// delete. A missing blob never blocks the row delete.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil || doc.OwnerEmail != email {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.objs.DeleteFile(r.Context(), doc.StoragePath); err != nil {
		h.log.WithError(err).WithField("key", doc.StoragePath).Warn("blob delete failed")
	}
	if err := h.dbclient.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reprocess clears the document's chunks and queues a fresh indexing run.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil || doc.OwnerEmail != email {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.dbclient.ResetChunks(r.Context(), id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "could not reset document")
		return
	}
	if err := h.ingestor.Enqueue(ingest.Job{
		DocID:       doc.ID,
		StoragePath: doc.StoragePath,
		MimeType:    doc.MimeType,
	}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "indexing queue is full, try again later")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

// ToggleActive flips whether the document participates in retrieval.
func (h *DocumentHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	active, err := h.dbclient.ToggleDocumentActive(r.Context(), id, email)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_active": active})
}
