package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	middleware "github.com/markdave123-py/corpora/internal/api/middlewares"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/logger"
	"github.com/markdave123-py/corpora/internal/models"
)

type FolderHandler struct {
	dbclient core.DbClient
	objs     core.ObjectClient
	log      *logrus.Entry
}

func NewFolderHandler(dbclient core.DbClient, objs core.ObjectClient) *FolderHandler {
	return &FolderHandler{dbclient: dbclient, objs: objs, log: logger.New("folders")}
}

type folderRequest struct {
	Name string `json:"name"`
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())

	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "folder name is required")
		return
	}

	folder := &models.Folder{
		ID:         uuid.NewString(),
		OwnerEmail: email,
		Name:       strings.TrimSpace(req.Name),
		CreatedAt:  time.Now(),
	}
	if err := h.dbclient.CreateFolder(r.Context(), folder); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create folder")
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	folders, err := h.dbclient.ListFoldersByOwner(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list folders")
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// Delete removes a folder and every document in it. Blobs are deleted
// best-effort before the rows cascade away.
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	id := chi.URLParam(r, "id")

	folder, err := h.dbclient.GetFolderByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load folder")
		return
	}
	if folder == nil || folder.OwnerEmail != email {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}

	docs, err := h.dbclient.ListDocumentsByFolder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list folder documents")
		return
	}
	for _, doc := range docs {
		if err := h.objs.DeleteFile(r.Context(), doc.StoragePath); err != nil {
			h.log.WithError(err).WithField("key", doc.StoragePath).Warn("blob delete failed")
		}
	}

	if err := h.dbclient.DeleteFolder(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete folder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
