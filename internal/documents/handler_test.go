package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"claimdocs-backend/internal/quota"
)

type fakeStore struct {
	saved   map[string][]byte
	deleted []string
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (f *fakeStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	if f.failAll {
		return "", 0, "", io.ErrUnexpectedEOF
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	key := userID + "/" + fileName
	f.saved[key] = b
	return key, int64(len(b)), "application/pdf", nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.saved[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

type noopProcessor struct{}

func (noopProcessor) Process(ctx context.Context, documentID string, attempt int) error { return nil }

func newTestRouter(t *testing.T, userID string) (*gin.Engine, *MemoryRepo, *fakeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := NewMemoryRepo()
	store := newFakeStore()
	svc := &Service{
		Repo:            repo,
		Store:           store,
		Quota:           quota.NewService(quota.Defaults{DocLimit: 25, BytesLimit: 1 << 20}),
		Processor:       noopProcessor{},
		StorageProvider: "local",
		UserRetryLimit:  3,
	}
	h := NewHandler(svc, 1<<20, 10*time.Millisecond)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userId", userID) })
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, repo, store
}

func multipartUpload(t *testing.T, fileName, docType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader(content)); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if docType != "" {
		_ = w.WriteField("documentType", docType)
	}
	w.Close()
	return &body, w.FormDataContentType()
}

func TestUploadCreatesPendingDocument(t *testing.T) {
	r, repo, store := newTestRouter(t, "u1")

	body, ctype := multipartUpload(t, "bill.pdf", "medical_bill", "%PDF-1.4 fake")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		DocumentID string `json:"documentId"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusPending || resp.DocumentID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	d, err := repo.Get(context.Background(), resp.DocumentID)
	if err != nil {
		t.Fatalf("created doc missing: %v", err)
	}
	if d.DocumentType != "medical_bill" || d.SizeBytes == 0 {
		t.Fatalf("unexpected doc: %+v", d)
	}
	if len(store.saved) != 1 {
		t.Fatalf("blob not saved")
	}
}

func TestUploadMissingFile(t *testing.T) {
	r, _, _ := newTestRouter(t, "u1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestStatusPollAndThrottle(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u1")
	seedDoc(t, repo, "d1", "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first poll: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1/status", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll: want 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestStatusHidesOtherUsersDocuments(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u2")
	seedDoc(t, repo, "d1", "u1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1/status", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
}

func TestStatusOfFailedDocumentCarriesSafeMessage(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u1")
	ctx := context.Background()
	seedDoc(t, repo, "d1", "u1")
	if _, err := repo.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Fail(ctx, "d1", FailureAnalysisUnavailable, "connect: upstream 502 at 10.0.3.7"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.3.7") {
		t.Fatal("internal error detail leaked to user")
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != FailureAnalysisUnavailable {
		t.Fatalf("unexpected error payload: %+v", resp.Error)
	}
}

func TestDeleteRemovesBlobAndHidesDocument(t *testing.T) {
	r, repo, store := newTestRouter(t, "u1")
	d := Document{ID: "d1", UserID: "u1", FileName: "bill.pdf", Status: StatusPending, StorageKey: "u1/bill.pdf"}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.saved["u1/bill.pdf"] = []byte("x")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/d1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "u1/bill.pdf" {
		t.Fatalf("blob not deleted: %v", store.deleted)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: want 404, got %d", w.Code)
	}
}

func TestRetryOnlyFailedDocuments(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u1")
	seedDoc(t, repo, "d1", "u1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents/d1/retry", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("retry pending: want 409, got %d", w.Code)
	}

	ctx := context.Background()
	if _, err := repo.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Fail(ctx, "d1", FailureAnalysisUnavailable, "down"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents/d1/retry", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry failed doc: want 202, got %d %s", w.Code, w.Body.String())
	}
	d, _ := repo.Get(ctx, "d1")
	if d.Status != StatusPending {
		t.Fatalf("retry did not reset status: %s", d.Status)
	}
}

func TestUpdateMetadataOnlyWhilePending(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u1")
	ctx := context.Background()
	seedDoc(t, repo, "d1", "u1")

	body := strings.NewReader(`{"documentType":"insurance_policy"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/documents/d1", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update pending: %d %s", w.Code, w.Body.String())
	}
	d, _ := repo.Get(ctx, "d1")
	if d.DocumentType != "insurance_policy" {
		t.Fatalf("metadata not updated: %+v", d)
	}

	if _, err := repo.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/documents/d1", strings.NewReader(`{"fileName":"late.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("update after claim: want 409, got %d", w.Code)
	}
}

func TestListNewestFirst(t *testing.T) {
	r, repo, _ := newTestRouter(t, "u1")
	ctx := context.Background()
	old := Document{ID: "old", UserID: "u1", FileName: "a.pdf", Status: StatusPending, CreatedAt: time.Now().Add(-time.Hour)}
	fresh := Document{ID: "fresh", UserID: "u1", FileName: "b.pdf", Status: StatusPending, CreatedAt: time.Now()}
	_ = repo.Create(ctx, old)
	_ = repo.Create(ctx, fresh)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var resp struct {
		Documents []documentResponse `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Documents) != 2 || resp.Documents[0].ID != "fresh" {
		t.Fatalf("unexpected order: %+v", resp.Documents)
	}
}
