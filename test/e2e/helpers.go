//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api/handlers"
	"github.com/cloo-solutions/docadmin/internal/repository"
	"github.com/cloo-solutions/docadmin/internal/server"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/cloo-solutions/docadmin/internal/storage"
	"github.com/cloo-solutions/docadmin/internal/testutil"
	"github.com/cloo-solutions/docadmin/internal/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds everything a test needs to drive the API end to end
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	ServerURL  string
	Webhook    *StubWebhook
	AdminID    string
	AuthToken  string
	HTTPClient *http.Client
}

// StubWebhook answers the first FailFirst calls with 404, which the client
// retries, then accepts.
type StubWebhook struct {
	FailFirst int32

	calls    atomic.Int32
	mu       sync.Mutex
	received []map[string]string
}

func (s *StubWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	fields := map[string]string{}
	for k, v := range r.MultipartForm.Value {
		fields[k] = v[0]
	}
	if fh, ok := r.MultipartForm.File["file"]; ok && len(fh) > 0 {
		fields["file"] = fh[0].Filename
	}
	s.mu.Lock()
	s.received = append(s.received, fields)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if n <= s.FailFirst {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"webhook not registered"}`)
		return
	}
	fmt.Fprintf(w, `{"ok":true,"documentId":%q}`, fields["documentId"])
}

func (s *StubWebhook) Calls() int { return int(s.calls.Load()) }

func (s *StubWebhook) Last() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return nil
	}
	return s.received[len(s.received)-1]
}

// SetupE2EEnv starts Postgres, RustFS, a stub webhook and the API server.
func SetupE2EEnv(t *testing.T, hook *StubWebhook) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSAccessKey,
		Bucket:          "e2e-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	hookSrv := httptest.NewServer(hook)

	docRepo := repository.NewDocumentRepository(pool)
	authSvc := service.NewAuthService(repository.NewAdminUserRepository(pool), repository.NewAPIKeyRepository(pool), &service.DefaultUUIDGenerator{})
	sender := webhook.NewClient(webhook.Config{
		URL:        hookSrv.URL,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    5 * time.Second,
	})
	forwardSvc := service.NewForwardService(docRepo, s3Client, sender)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: handlers.NewDocumentHandler(service.NewDocumentService(docRepo, s3Client), forwardSvc),
		FragmentHandler: handlers.NewFragmentHandler(service.NewFragmentService(repository.NewFragmentRepository(pool), forwardSvc, nil)),
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	})
	apiSrv := httptest.NewServer(router)

	admin, err := authSvc.CreateAdmin(ctx, "e2e@example.com")
	if err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	token, err := authSvc.CreateAPIKey(ctx, admin.ID, "e2e")
	if err != nil {
		t.Fatalf("failed to create api key: %v", err)
	}

	t.Cleanup(func() {
		apiSrv.Close()
		hookSrv.Close()
		pool.Close()
		s3C.Terminate(ctx)
		pgC.Terminate(ctx)
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		ServerURL:  apiSrv.URL,
		Webhook:    hook,
		AdminID:    admin.ID,
		AuthToken:  token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIResponse is the success or error envelope
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Raw        []byte
}

func (e *E2ETestEnv) do(req *http.Request) *APIResponse {
	if e.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.AuthToken)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	out := &APIResponse{StatusCode: resp.StatusCode, Raw: body}
	if len(body) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(body, out)
	}
	return out
}

func (e *E2ETestEnv) Request(method, path string, body interface{}) *APIResponse {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reader)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(req)
}

// Upload posts a multipart document create.
func (e *E2ETestEnv) Upload(fields map[string]string, fileName string, content []byte) *APIResponse {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			e.T.Fatalf("failed to write field: %v", err)
		}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		e.T.Fatalf("failed to create file part: %v", err)
	}
	part.Write(content)
	w.Close()

	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.ServerURL+"/documents", &buf)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req)
}

func decodeData[T any](t *testing.T, resp *APIResponse) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("failed to decode data %s: %v", string(resp.Raw), err)
	}
	return out
}
