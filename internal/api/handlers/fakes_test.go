package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/models"
)

// fakeDB is an in-memory core.DbClient for handler tests.
type fakeDB struct {
	users         map[string]*models.User
	folders       map[string]*models.Folder
	docs          map[string]*models.Document
	sharedFolders map[string]*models.SharedFolder
	sharedDocs    map[string]*models.SharedDocument
	prefs         map[string]bool // email + "|" + docID -> is_rag_active

	personalUsed int64
	sharedUsed   int64

	resetDocs    []string
	searchResult []models.ScoredChunk
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:         map[string]*models.User{},
		folders:       map[string]*models.Folder{},
		docs:          map[string]*models.Document{},
		sharedFolders: map[string]*models.SharedFolder{},
		sharedDocs:    map[string]*models.SharedDocument{},
		prefs:         map[string]bool{},
	}
}

var errNotFound = errors.New("not found")

func (f *fakeDB) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := f.users[u.Email]; ok {
		return errors.New("duplicate")
	}
	f.users[u.Email] = u
	return nil
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.users[email], nil
}

func (f *fakeDB) CreateFolder(_ context.Context, folder *models.Folder) error {
	f.folders[folder.ID] = folder
	return nil
}

func (f *fakeDB) GetFolderByID(_ context.Context, id string) (*models.Folder, error) {
	return f.folders[id], nil
}

func (f *fakeDB) ListFoldersByOwner(_ context.Context, owner string) ([]models.Folder, error) {
	var out []models.Folder
	for _, fo := range f.folders {
		if fo.OwnerEmail == owner {
			out = append(out, *fo)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteFolder(_ context.Context, id string) error {
	delete(f.folders, id)
	return nil
}

func (f *fakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	return f.docs[id], nil
}

func (f *fakeDB) ListDocumentsByOwner(_ context.Context, owner string) ([]models.DocumentListing, error) {
	var out []models.DocumentListing
	for _, d := range f.docs {
		if d.OwnerEmail == owner {
			out = append(out, models.DocumentListing{Document: *d})
		}
	}
	return out, nil
}

func (f *fakeDB) ListDocumentsByFolder(_ context.Context, folderID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.FolderID != nil && *d.FolderID == folderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeDB) ToggleDocumentActive(_ context.Context, id, owner string) (bool, error) {
	d := f.docs[id]
	if d == nil || d.OwnerEmail != owner {
		return false, errNotFound
	}
	d.IsActive = !d.IsActive
	return d.IsActive, nil
}

func (f *fakeDB) SumDocumentSizesByOwner(context.Context, string) (int64, error) {
	return f.personalUsed, nil
}

func (f *fakeDB) ResetChunks(_ context.Context, docID string, _ bool) error {
	f.resetDocs = append(f.resetDocs, docID)
	return nil
}

func (f *fakeDB) PersistChunks(context.Context, string, bool, []models.DocumentChunk) error {
	return nil
}

func (f *fakeDB) CreateSharedFolder(_ context.Context, folder *models.SharedFolder) error {
	f.sharedFolders[folder.ID] = folder
	return nil
}

func (f *fakeDB) GetSharedFolderByID(_ context.Context, id string) (*models.SharedFolder, error) {
	return f.sharedFolders[id], nil
}

func (f *fakeDB) ListSharedFolders(_ context.Context, department string) ([]models.SharedFolderListing, error) {
	var out []models.SharedFolderListing
	for _, fo := range f.sharedFolders {
		if department == "" || fo.Department == department {
			out = append(out, models.SharedFolderListing{SharedFolder: *fo})
		}
	}
	return out, nil
}

func (f *fakeDB) RenameSharedFolder(_ context.Context, id, name string) error {
	fo := f.sharedFolders[id]
	if fo == nil {
		return errNotFound
	}
	fo.Name = name
	return nil
}

func (f *fakeDB) DeleteSharedFolder(_ context.Context, id string) error {
	delete(f.sharedFolders, id)
	return nil
}

func (f *fakeDB) CreateSharedDocument(_ context.Context, doc *models.SharedDocument) error {
	f.sharedDocs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetSharedDocumentByID(_ context.Context, id string) (*models.SharedDocument, error) {
	return f.sharedDocs[id], nil
}

func (f *fakeDB) ListSharedDocuments(_ context.Context, caller, department string, admin bool) ([]models.SharedDocumentListing, error) {
	var out []models.SharedDocumentListing
	for _, d := range f.sharedDocs {
		if !admin {
			if department == "" || !d.IsVisible {
				continue
			}
			fo := f.sharedFolders[d.FolderID]
			if fo == nil || fo.Department != department {
				continue
			}
		}
		out = append(out, models.SharedDocumentListing{SharedDocument: *d})
	}
	return out, nil
}

func (f *fakeDB) ListSharedDocumentsByFolder(_ context.Context, folderID string) ([]models.SharedDocument, error) {
	var out []models.SharedDocument
	for _, d := range f.sharedDocs {
		if d.FolderID == folderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteSharedDocument(_ context.Context, id string) error {
	delete(f.sharedDocs, id)
	return nil
}

func (f *fakeDB) ToggleSharedVisibility(_ context.Context, id string) (bool, error) {
	d := f.sharedDocs[id]
	if d == nil {
		return false, errNotFound
	}
	d.IsVisible = !d.IsVisible
	return d.IsVisible, nil
}

func (f *fakeDB) ToggleSharedRAG(_ context.Context, id string) (bool, error) {
	d := f.sharedDocs[id]
	if d == nil {
		return false, errNotFound
	}
	d.IsRAGActive = !d.IsRAGActive
	return d.IsRAGActive, nil
}

func (f *fakeDB) ToggleUserSharedPref(_ context.Context, userEmail, docID string) (bool, error) {
	key := userEmail + "|" + docID
	if cur, ok := f.prefs[key]; ok {
		f.prefs[key] = !cur
	} else {
		// First toggle opts out.
		f.prefs[key] = false
	}
	return f.prefs[key], nil
}

func (f *fakeDB) SumSharedDocumentSizes(context.Context) (int64, error) {
	return f.sharedUsed, nil
}

func (f *fakeDB) SearchChunks(context.Context, []float32, retrieval.Scope, int) ([]models.ScoredChunk, error) {
	return f.searchResult, nil
}

func (f *fakeDB) Close() error { return nil }

var _ core.DbClient = (*fakeDB)(nil)

// fakeObjs is an in-memory core.ObjectClient.
type fakeObjs struct {
	blobs      map[string][]byte
	deleted    []string
	uploadErr  error
}

func newFakeObjs() *fakeObjs {
	return &fakeObjs{blobs: map[string][]byte{}}
}

func (o *fakeObjs) UploadFile(_ context.Context, key string, data []byte, _ string) error {
	if o.uploadErr != nil {
		return o.uploadErr
	}
	o.blobs[key] = data
	return nil
}

func (o *fakeObjs) DownloadFile(_ context.Context, key string) ([]byte, error) {
	d, ok := o.blobs[key]
	if !ok {
		return nil, errNotFound
	}
	return d, nil
}

func (o *fakeObjs) DeleteFile(_ context.Context, key string) error {
	o.deleted = append(o.deleted, key)
	delete(o.blobs, key)
	return nil
}

var _ core.ObjectClient = (*fakeObjs)(nil)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "secret",
		AdminEmails:        map[string]bool{"admin@corp.io": true},
		ChunkSize:          512,
		ChunkOverlap:       50,
		UserStorageLimit:   512 * 1024 * 1024,
		SharedStorageLimit: 512 * 1024 * 1024,
	}
}

func seedUser(db *fakeDB, email, dept string) {
	db.users[email] = &models.User{
		ID:        email,
		Email:     email,
		Department: dept,
		CreatedAt: time.Now(),
	}
}
