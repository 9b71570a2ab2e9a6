package handlers

import (
	"encoding/json"
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

// previewLimit caps the plain-text preview returned by Content.
const previewLimit = 50_000

// SharedDocumentHandler manages the organisation-wide document pool. Writes
// are admin-only; reads are filtered by the caller's department.
type SharedDocumentHandler struct {
	dbclient core.DbClient
	objs     core.ObjectClient
	ingestor *ingest.Ingestor
	cfg      *config.Config
	log      *logrus.Entry
}

func NewSharedDocumentHandler(dbclient core.DbClient, objs core.ObjectClient, ingestor *ingest.Ingestor, cfg *config.Config) *SharedDocumentHandler {
	return &SharedDocumentHandler{
		dbclient: dbclient,
		objs:     objs,
		ingestor: ingestor,
		cfg:      cfg,
		log:      logger.New("shared-documents"),
	}
}

// requireAdmin writes a 403 and returns "" when the caller is not an admin.
func (h *SharedDocumentHandler) requireAdmin(w http.ResponseWriter, r *http.Request) string {
	email := middleware.UserEmail(r.Context())
	if !h.cfg.IsAdmin(email) {
		writeError(w, http.StatusForbidden, "admin access required")
		return ""
	}
	return email
}

// callerDepartment loads the caller's department, "" when unset.
func (h *SharedDocumentHandler) callerDepartment(r *http.Request) (string, error) {
	user, err := h.dbclient.GetUserByEmail(r.Context(), middleware.UserEmail(r.Context()))
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.Department, nil
}

func (h *SharedDocumentHandler) StorageUsage(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	used, err := h.dbclient.SumSharedDocumentSizes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read storage usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"used_bytes":  used,
		"limit_bytes": h.cfg.SharedStorageLimit,
	})
}

type sharedFolderRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

func (h *SharedDocumentHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}

	var req sharedFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Department) == "" {
		writeError(w, http.StatusBadRequest, "name and department are required")
		return
	}

	folder := &models.SharedFolder{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		Department: strings.TrimSpace(req.Department),
		CreatedAt:  time.Now(),
	}
	if err := h.dbclient.CreateSharedFolder(r.Context(), folder); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create folder")
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// ListFolders returns every shared folder for admins, the caller's
// department's folders otherwise.
func (h *SharedDocumentHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())

	dept := ""
	if !h.cfg.IsAdmin(email) {
		var err error
		dept, err = h.callerDepartment(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not load user")
			return
		}
		if dept == "" {
			writeJSON(w, http.StatusOK, map[string]any{"folders": []models.SharedFolderListing{}})
			return
		}
	}

	folders, err := h.dbclient.ListSharedFolders(r.Context(), dept)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list folders")
		return
	}
	if folders == nil {
		folders = []models.SharedFolderListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (h *SharedDocumentHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "folder name is required")
		return
	}

	if err := h.dbclient.RenameSharedFolder(r.Context(), id, strings.TrimSpace(req.Name)); err != nil {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (h *SharedDocumentHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	id := chi.URLParam(r, "id")

	folder, err := h.dbclient.GetSharedFolderByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load folder")
		return
	}
	if folder == nil {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}

	docs, err := h.dbclient.ListSharedDocumentsByFolder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list folder documents")
		return
	}
	for _, doc := range docs {
		if err := h.objs.DeleteFile(r.Context(), doc.StoragePath); err != nil {
			h.log.WithError(err).WithField("key", doc.StoragePath).Warn("blob delete failed")
		}
	}

	if err := h.dbclient.DeleteSharedFolder(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete folder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Upload adds files to a shared folder. The pool has a single global quota
// checked before each file is stored.
func (h *SharedDocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	folderID := r.FormValue("folder_id")
	if folderID == "" {
		writeError(w, http.StatusBadRequest, "folder_id is required")
		return
	}
	folder, err := h.dbclient.GetSharedFolderByID(r.Context(), folderID)
	if err != nil || folder == nil {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	used, err := h.dbclient.SumSharedDocumentSizes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not check storage usage")
		return
	}
	var incoming int64
	for _, fh := range files {
		incoming += fh.Size
	}
	if used+incoming > h.cfg.SharedStorageLimit {
		writeError(w, http.StatusRequestEntityTooLarge, "shared storage limit exceeded")
		return
	}

	results := make([]uploadResult, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedExtensions[ext] {
			results = append(results, uploadResult{Filename: fh.Filename, Status: "skipped", Reason: "unsupported file type"})
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

		key := "shared/" + strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + filepath.Base(fh.Filename)
		if err := h.objs.UploadFile(r.Context(), key, data, contentType); err != nil {
			h.log.WithError(err).WithField("file", fh.Filename).Error("blob upload failed")
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "storage error"})
			continue
		}

		doc := &models.SharedDocument{
			ID:               uuid.NewString(),
			FolderID:         folderID,
			OriginalFilename: fh.Filename,
			StoragePath:      key,
			FileSize:         fh.Size,
			MimeType:         contentType,
			IsVisible:        true,
			IsRAGActive:      true,
			CreatedAt:        time.Now(),
		}
		if err := h.dbclient.CreateSharedDocument(r.Context(), doc); err != nil {
			h.log.WithError(err).WithField("file", fh.Filename).Error("shared document insert failed")
			results = append(results, uploadResult{Filename: fh.Filename, Status: "failed", Reason: "database error"})
			continue
		}

		if err := h.ingestor.Enqueue(ingest.Job{
			DocID:       doc.ID,
			Shared:      true,
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

// List returns shared documents visible to the caller: everything for
// admins, the caller's department's visible documents otherwise.
func (h *SharedDocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	admin := h.cfg.IsAdmin(email)

	dept := ""
	if !admin {
		var err error
		dept, err = h.callerDepartment(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not load user")
			return
		}
	}

	docs, err := h.dbclient.ListSharedDocuments(r.Context(), email, dept, admin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []models.SharedDocumentListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Content returns a capped plain-text preview of a shared document.
func (h *SharedDocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetSharedDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if !h.cfg.IsAdmin(email) {
		if !doc.IsVisible {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		dept, err := h.callerDepartment(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not load user")
			return
		}
		folder, err := h.dbclient.GetSharedFolderByID(r.Context(), doc.FolderID)
		if err != nil || folder == nil || dept == "" || folder.Department != dept {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
	}

	data, err := h.objs.DownloadFile(r.Context(), doc.StoragePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not fetch document")
		return
	}
	text := ingest.Extract(data, doc.MimeType)

	truncated := false
	if runes := []rune(text); len(runes) > previewLimit {
		text = string(runes[:previewLimit])
		truncated = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":  doc.OriginalFilename,
		"content":   text,
		"truncated": truncated,
	})
}

func (h *SharedDocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetSharedDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.objs.DeleteFile(r.Context(), doc.StoragePath); err != nil {
		h.log.WithError(err).WithField("key", doc.StoragePath).Warn("blob delete failed")
	}
	if err := h.dbclient.DeleteSharedDocument(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *SharedDocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetSharedDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := h.dbclient.ResetChunks(r.Context(), id, true); err != nil {
		writeError(w, http.StatusInternalServerError, "could not reset document")
		return
	}
	if err := h.ingestor.Enqueue(ingest.Job{
		DocID:       doc.ID,
		Shared:      true,
		StoragePath: doc.StoragePath,
		MimeType:    doc.MimeType,
	}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "indexing queue is full, try again later")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

// ToggleVisibility hides or shows a document for the whole organisation.
func (h *SharedDocumentHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	visible, err := h.dbclient.ToggleSharedVisibility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_visible": visible})
}

// ToggleRAG flips the document-level retrieval kill switch.
func (h *SharedDocumentHandler) ToggleRAG(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == "" {
		return
	}
	active, err := h.dbclient.ToggleSharedRAG(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_rag_active": active})
}

// ToggleUserPref flips the caller's personal opt-out for one shared
// document. The first toggle creates the preference row as opted out.
func (h *SharedDocumentHandler) ToggleUserPref(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.dbclient.GetSharedDocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	active, err := h.dbclient.ToggleUserSharedPref(r.Context(), email, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not update preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_rag_active": active})
}
