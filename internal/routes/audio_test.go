package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"scenetunes/internal/core"
	"scenetunes/internal/database"
	audiofs "scenetunes/internal/io"
)

var testSecret = []byte("test-secret")

type okProber struct{}

func (okProber) CanDecode(ctx context.Context, blob []byte) bool { return true }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	sqlite, err := database.DatabaseSetup(ctx, t.TempDir(), database.EmbedMigrations)
	if err != nil {
		t.Fatalf("database.DatabaseSetup() %+v", err)
	}
	t.Cleanup(func() { sqlite.Db.Close() })

	files, err := audiofs.MakeFileSystemHandlerAt(t.TempDir())
	if err != nil {
		t.Fatalf("audiofs.MakeFileSystemHandlerAt() %+v", err)
	}

	pipeline := core.Pipeline{
		Validator:  core.Validator{Prober: okProber{}, SkipScan: true},
		Db:         sqlite,
		Files:      files,
		QuotaBytes: 1 << 20,
	}
	engine := core.StreamEngine{Db: sqlite, Files: files}

	r := gin.New()
	AudioRoutes(r, testSecret, pipeline, engine)
	QuotaRoutes(r, testSecret, sqlite, 1<<20)
	HealthRoutes(r, sqlite)

	return r
}

func bearerToken(t *testing.T, owner string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: owner}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() %+v", err)
	}
	return "Bearer " + token
}

func uploadFile(t *testing.T, r *gin.Engine, auth string, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fw, err := form.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form.CreateFormFile() %+v", err)
	}
	fw.Write(data)
	form.Close()

	req := httptest.NewRequest("POST", "/v1/audio", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", auth)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func mp3Payload(body string) []byte {
	return append([]byte("ID3"), []byte(body)...)
}

func TestUploadStreamDelete(t *testing.T) {
	r := newTestRouter(t)
	owner := uuid.NewString()
	auth := bearerToken(t, owner)

	rec := uploadFile(t, r, auth, "tavern.mp3", mp3Payload("ABCDEFG"))
	if rec.Code != 201 {
		t.Fatalf("expected 201. got: %v body: %v", rec.Code, rec.Body.String())
	}

	var descriptor struct {
		Id   string `json:"id"`
		Size int64  `json:"size"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &descriptor); err != nil {
		t.Fatalf("json.Unmarshal() %+v", err)
	}
	if descriptor.Size != 10 {
		t.Errorf("expected size 10. got: %v", descriptor.Size)
	}

	// Full stream.
	req := httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200. got: %v", rec.Code)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Errorf("expected Accept-Ranges bytes. got: %q", rec.Header().Get("Accept-Ranges"))
	}
	if rec.Body.String() != "ID3ABCDEFG" {
		t.Errorf("expected full body. got: %q", rec.Body.String())
	}

	// Partial stream.
	req = httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	req.Header.Set("Range", "bytes=3-6")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 206 {
		t.Fatalf("expected 206. got: %v", rec.Code)
	}
	if rec.Header().Get("Content-Range") != "bytes 3-6/10" {
		t.Errorf("expected Content-Range bytes 3-6/10. got: %q", rec.Header().Get("Content-Range"))
	}
	if rec.Body.String() != "ABCD" {
		t.Errorf("expected body ABCD. got: %q", rec.Body.String())
	}

	// Unsatisfiable range.
	req = httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	req.Header.Set("Range", "bytes=10-")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 416 {
		t.Fatalf("expected 416. got: %v", rec.Code)
	}
	if rec.Header().Get("Content-Range") != "bytes */10" {
		t.Errorf("expected Content-Range bytes */10. got: %q", rec.Header().Get("Content-Range"))
	}

	// Malformed range falls back to the full file.
	req = httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	req.Header.Set("Range", "bytes=oops")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 fallback. got: %v", rec.Code)
	}

	// Delete frees the bytes.
	req = httptest.NewRequest("DELETE", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200. got: %v body: %v", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", auth)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Errorf("expected 404 after delete. got: %v", rec.Code)
	}
}

func TestUploadValidationStatuses(t *testing.T) {
	r := newTestRouter(t)
	auth := bearerToken(t, uuid.NewString())

	rec := uploadFile(t, r, auth, "tavern.wav", mp3Payload("ABC"))
	if rec.Code != 415 {
		t.Errorf("expected 415 for wrong extension. got: %v", rec.Code)
	}

	rec = uploadFile(t, r, auth, "tavern.mp3", []byte("no signature here"))
	if rec.Code != 415 {
		t.Errorf("expected 415 for missing signature. got: %v", rec.Code)
	}

	rec = uploadFile(t, r, auth, "tavern.mp3", nil)
	if rec.Code != 400 {
		t.Errorf("expected 400 for empty file. got: %v", rec.Code)
	}
}

func TestStreamRequiresAuth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/v1/audio/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Errorf("expected 401 without a token. got: %v", rec.Code)
	}

	req = httptest.NewRequest("GET", "/v1/audio/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Errorf("expected 401 with a bad token. got: %v", rec.Code)
	}
}

func TestOwnersCannotTouchEachOthersAudio(t *testing.T) {
	r := newTestRouter(t)
	owner := uuid.NewString()
	stranger := bearerToken(t, uuid.NewString())

	rec := uploadFile(t, r, bearerToken(t, owner), "tavern.mp3", mp3Payload("ABCDEFG"))
	if rec.Code != 201 {
		t.Fatalf("expected 201. got: %v", rec.Code)
	}
	var descriptor struct {
		Id string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &descriptor); err != nil {
		t.Fatalf("json.Unmarshal() %+v", err)
	}

	req := httptest.NewRequest("GET", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", stranger)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Errorf("expected 401 for a stranger's stream. got: %v", rec.Code)
	}

	req = httptest.NewRequest("DELETE", "/v1/audio/"+descriptor.Id, nil)
	req.Header.Set("Authorization", stranger)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Errorf("expected 401 for a stranger's delete. got: %v", rec.Code)
	}
}

func TestQuotaEndpoint(t *testing.T) {
	r := newTestRouter(t)
	owner := uuid.NewString()
	auth := bearerToken(t, owner)

	rec := uploadFile(t, r, auth, "tavern.mp3", mp3Payload("ABCDEFG"))
	if rec.Code != 201 {
		t.Fatalf("expected 201. got: %v", rec.Code)
	}

	req := httptest.NewRequest("GET", "/v1/quota", nil)
	req.Header.Set("Authorization", auth)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200. got: %v", rec.Code)
	}

	var quota struct {
		UsedBytes      int64 `json:"used_bytes"`
		MaxBytes       int64 `json:"max_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &quota); err != nil {
		t.Fatalf("json.Unmarshal() %+v", err)
	}
	if quota.UsedBytes != 10 {
		t.Errorf("expected used=10. got: %v", quota.UsedBytes)
	}
	if quota.AvailableBytes != quota.MaxBytes-10 {
		t.Errorf("available should be max-10. got: %v", quota.AvailableBytes)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("expected 200. got: %v", rec.Code)
	}
}
