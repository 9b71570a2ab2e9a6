package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/markdave123-py/corpora/internal/api/middlewares"
	"github.com/markdave123-py/corpora/internal/core/ingest"
	"github.com/markdave123-py/corpora/internal/models"
)

func newDocHandler(db *fakeDB, objs *fakeObjs) *DocumentHandler {
	ing := ingest.NewIngestor(db, objs, nil, 512, 50, 0, 16)
	return NewDocumentHandler(db, objs, ing, testConfig())
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func authedRequest(method, target string, body *bytes.Buffer, email string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.WithUserEmail(req.Context(), email))
}

func withURLParam(r *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeResults(t *testing.T, rec *httptest.ResponseRecorder) []uploadResult {
	t.Helper()
	var resp struct {
		Results []uploadResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Results
}

func TestUploadStoresAndQueues(t *testing.T) {
	db := newFakeDB()
	objs := newFakeObjs()
	h := newDocHandler(db, objs)

	body, ctype := multipartBody(t, map[string][]byte{"notes.txt": []byte("hello world")})
	req := authedRequest("POST", "/api/documents/upload", body, "u@corp.io")
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	results := decodeResults(t, rec)
	require.Len(t, results, 1)
	assert.Equal(t, "processing", results[0].Status)
	assert.NotEmpty(t, results[0].DocID)

	require.Len(t, db.docs, 1)
	doc := db.docs[results[0].DocID]
	require.NotNil(t, doc)
	assert.Equal(t, "u@corp.io", doc.OwnerEmail)
	assert.Equal(t, "notes.txt", doc.OriginalFilename)
	assert.True(t, doc.IsActive)
	assert.Contains(t, doc.StoragePath, "u@corp.io/")
	assert.Contains(t, doc.StoragePath, "_notes.txt")
	assert.Contains(t, objs.blobs, doc.StoragePath)
}

func TestUploadSkipsDisallowedExtensions(t *testing.T) {
	db := newFakeDB()
	h := newDocHandler(db, newFakeObjs())

	body, ctype := multipartBody(t, map[string][]byte{
		"script.exe": []byte("MZ"),
		"good.md":    []byte("# ok"),
	})
	req := authedRequest("POST", "/api/documents/upload", body, "u@corp.io")
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	results := decodeResults(t, rec)
	require.Len(t, results, 2)

	byName := map[string]uploadResult{}
	for _, res := range results {
		byName[res.Filename] = res
	}
	assert.Equal(t, "skipped", byName["script.exe"].Status)
	assert.Equal(t, "processing", byName["good.md"].Status)
	assert.Len(t, db.docs, 1)
}

func TestUploadRejectsOverQuota(t *testing.T) {
	db := newFakeDB()
	db.personalUsed = testConfig().UserStorageLimit // already full
	h := newDocHandler(db, newFakeObjs())

	body, ctype := multipartBody(t, map[string][]byte{"big.txt": []byte("x")})
	req := authedRequest("POST", "/api/documents/upload", body, "u@corp.io")
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	results := decodeResults(t, rec)
	require.Len(t, results, 1)
	assert.Equal(t, "rejected", results[0].Status)
	assert.Empty(t, db.docs)
}

func TestUploadUnknownFolder(t *testing.T) {
	db := newFakeDB()
	h := newDocHandler(db, newFakeObjs())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("folder_id", "missing"))
	fw, err := mw.CreateFormFile("files", "a.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := authedRequest("POST", "/api/documents/upload", &buf, "u@corp.io")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRemovesBlobAndRow(t *testing.T) {
	db := newFakeDB()
	objs := newFakeObjs()
	objs.blobs["u@corp.io/key_a.txt"] = []byte("data")
	db.docs["d1"] = &models.Document{ID: "d1", OwnerEmail: "u@corp.io", StoragePath: "u@corp.io/key_a.txt"}
	h := newDocHandler(db, objs)

	req := withURLParam(authedRequest("DELETE", "/api/documents/d1", nil, "u@corp.io"), "id", "d1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, db.docs)
	assert.Contains(t, objs.deleted, "u@corp.io/key_a.txt")
}

func TestDeleteRejectsForeignDocument(t *testing.T) {
	db := newFakeDB()
	db.docs["d1"] = &models.Document{ID: "d1", OwnerEmail: "owner@corp.io", StoragePath: "k"}
	h := newDocHandler(db, newFakeObjs())

	req := withURLParam(authedRequest("DELETE", "/api/documents/d1", nil, "intruder@corp.io"), "id", "d1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, db.docs, 1)
}

func TestReprocessResetsAndQueues(t *testing.T) {
	db := newFakeDB()
	db.docs["d1"] = &models.Document{ID: "d1", OwnerEmail: "u@corp.io", StoragePath: "k", MimeType: "text/plain"}
	h := newDocHandler(db, newFakeObjs())

	req := withURLParam(authedRequest("POST", "/api/documents/d1/reprocess", nil, "u@corp.io"), "id", "d1")
	rec := httptest.NewRecorder()
	h.Reprocess(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"d1"}, db.resetDocs)
}

func TestToggleActive(t *testing.T) {
	db := newFakeDB()
	db.docs["d1"] = &models.Document{ID: "d1", OwnerEmail: "u@corp.io", IsActive: true}
	h := newDocHandler(db, newFakeObjs())

	req := withURLParam(authedRequest("PATCH", "/api/documents/d1/toggle-active", nil, "u@corp.io"), "id", "d1")
	rec := httptest.NewRecorder()
	h.ToggleActive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp["is_active"])
	assert.False(t, db.docs["d1"].IsActive)
}
