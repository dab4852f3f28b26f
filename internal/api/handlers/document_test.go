package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api/middleware"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockDocumentService) CountByFlow(ctx context.Context) (map[domain.Flow]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.Flow]int64), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, id string) (*service.DocumentFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentFile), args.Error(1)
}

func (m *MockDocumentService) ViewURL(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, documentID string) (*service.ForwardResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ForwardResult), args.Error(1)
}

func sampleDocument() *domain.Document {
	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &domain.Document{
		ID:          "doc-1",
		Title:       "Safety manual",
		Description: "Shop floor rules",
		Code:        "SST-01",
		Version:     "2",
		Flow:        domain.FlowLearner,
		FilePath:    "aprendiz/SST-01-v2.pdf",
		FileName:    "SST-01-v2.pdf",
		Tags:        []string{"safety"},
		CreatedBy:   "admin-1",
		UpdatedBy:   "admin-1",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func multipartRequest(t *testing.T, fields map[string]string, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	doc := sampleDocument()
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateDocumentInput) bool {
		return in.Title == "Safety manual" && in.Flow == "aprendiz" && in.Tags == "safety, ppe" &&
			in.FileName == "manual.pdf" && string(in.Data) == "%PDF" && in.ActorID == "admin-1"
	})).Return(doc, nil)

	req := multipartRequest(t, map[string]string{
		"title":       "Safety manual",
		"description": "Shop floor rules",
		"code":        "SST-01",
		"version":     "2",
		"flow":        "aprendiz",
		"tags":        "safety, ppe",
	}, "manual.pdf", []byte("%PDF"))
	w := httptest.NewRecorder()

	handler.Create(w, withActor(req, "admin-1"))

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "doc-1", data["id"])
	assert.Equal(t, "aprendiz/SST-01-v2.pdf", data["file_path"])
	assert.Equal(t, false, data["processed_by_n8n"])
	assert.Nil(t, data["processed_at"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{"missing field", domain.ErrMissingRequiredField, http.StatusBadRequest},
		{"bad extension", domain.ErrInvalidFileType, http.StatusBadRequest},
		{"duplicate", domain.ErrDocumentAlreadyExists, http.StatusConflict},
		{"storage down", errors.New("failed to upload document file: timeout"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockDocumentService)
			handler := NewDocumentHandler(mockSvc, new(MockForwarder))
			mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, tt.svcErr)

			req := multipartRequest(t, map[string]string{"title": "x"}, "x.exe", []byte("MZ"))
			w := httptest.NewRecorder()

			handler.Create(w, withActor(req, "admin-1"))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDocumentHandler_Create_NotMultipart(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), new(MockForwarder))

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, withActor(req, "admin-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid multipart form")
}

func TestDocumentHandler_Create_StreamedBodyOverLimit(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))
	capped := middleware.MaxBodyBytes(1024)(http.HandlerFunc(handler.Create))

	req := multipartRequest(t, map[string]string{"title": "Safety manual"}, "manual.pdf", bytes.Repeat([]byte("x"), 4096))
	// chunked upload: the size is only discovered while reading
	req.ContentLength = -1
	w := httptest.NewRecorder()

	capped.ServeHTTP(w, withActor(req, "admin-1"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body exceeds 1024 bytes")
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	mockSvc.On("List", mock.Anything, service.ListDocumentsInput{
		Flow: "instructor", Query: "manual", Limit: 5, Cursor: "abc",
	}).Return(&service.DocumentPageResult{
		Items:      []*domain.Document{sampleDocument()},
		NextCursor: "next",
		HasMore:    true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents?flow=instructor&q=manual&limit=5&cursor=abc", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "next", data["next_cursor"])
	assert.Equal(t, true, data["has_more"])
	assert.Len(t, data["documents"], 1)
}

func TestDocumentHandler_List_BadLimit(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), new(MockForwarder))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/documents?limit=many", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Counts(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	mockSvc.On("CountByFlow", mock.Anything).Return(map[domain.Flow]int64{
		domain.FlowLearner:        3,
		domain.FlowInstructor:     0,
		domain.FlowAdministrative: 1,
	}, nil)

	w := httptest.NewRecorder()
	handler.Counts(w, httptest.NewRequest(http.MethodGet, "/documents/counts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(3), data["aprendiz"])
	assert.Equal(t, float64(0), data["instructor"])
	assert.Equal(t, float64(1), data["administrativo"])
}

func TestDocumentHandler_View(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	mockSvc.On("ViewURL", mock.Anything, "aprendiz/SST-01-v2.pdf").Return("https://s3.local/signed", nil)
	mockSvc.On("ViewURL", mock.Anything, "").Return("", domain.NewDomainError(domain.ErrCodeValidation, "file path is required"))

	form := url.Values{"path": {"aprendiz/SST-01-v2.pdf"}}
	req := httptest.NewRequest(http.MethodPost, "/documents/view", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.View(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://s3.local/signed", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/documents/view", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()

	handler.View(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_GetAndDelete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	mockSvc.On("Get", mock.Anything, "doc-1").Return(sampleDocument(), nil)
	mockSvc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)
	mockSvc.On("Delete", mock.Anything, "doc-1").Return(nil)

	w := httptest.NewRecorder()
	handler.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil), "id", "doc-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Safety manual", decodeData(t, w)["title"])

	w = httptest.NewRecorder()
	handler.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil), "id", "doc-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDocumentHandler_Download(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, new(MockForwarder))

	mockSvc.On("Download", mock.Anything, "doc-1").Return(&service.DocumentFile{
		FileName:    "SST-01-v2.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	}, nil)

	w := httptest.NewRecorder()
	handler.Download(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1/download", nil), "id", "doc-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="SST-01-v2.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestDocumentHandler_Forward_Success(t *testing.T) {
	forwarder := new(MockForwarder)
	handler := NewDocumentHandler(new(MockDocumentService), forwarder)

	at := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	forwarder.On("Forward", mock.Anything, "doc-1").Return(&service.ForwardResult{
		DocumentID:  "doc-1",
		Attempts:    2,
		StatusCode:  200,
		Response:    map[string]any{"chunks": float64(12)},
		ProcessedAt: at,
	}, nil)

	w := httptest.NewRecorder()
	handler.Forward(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-1/forward", nil), "id", "doc-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["attempts"])
	assert.Equal(t, "2026-02-11T08:00:00Z", data["processed_at"])
	assert.Equal(t, float64(12), data["response"].(map[string]interface{})["chunks"])
}

func TestDocumentHandler_Forward_Failure(t *testing.T) {
	forwarder := new(MockForwarder)
	handler := NewDocumentHandler(new(MockDocumentService), forwarder)

	forwarder.On("Forward", mock.Anything, "doc-1").Return(nil, &service.ForwardError{
		DocumentID: "doc-1",
		Stage:      service.StageDelivery,
		Attempts:   4,
		StatusCode: 404,
		Message:    "webhook responded 404 Not Found",
	})

	w := httptest.NewRecorder()
	handler.Forward(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/doc-1/forward", nil), "id", "doc-1"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp ForwardErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "delivery", resp.Stage)
	assert.Equal(t, 4, resp.Attempts)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "delivery failed: webhook responded 404 Not Found", resp.Error)
}

func TestDocumentHandler_Forward_NotFound(t *testing.T) {
	forwarder := new(MockForwarder)
	handler := NewDocumentHandler(new(MockDocumentService), forwarder)

	forwarder.On("Forward", mock.Anything, "gone").Return(nil, domain.ErrDocumentNotFound)

	w := httptest.NewRecorder()
	handler.Forward(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/gone/forward", nil), "id", "gone"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Forward_DetachesCancellation(t *testing.T) {
	forwarder := new(MockForwarder)
	handler := NewDocumentHandler(new(MockDocumentService), forwarder)

	forwarder.On("Forward", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), "doc-1").Return(&service.ForwardResult{DocumentID: "doc-1", Attempts: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/forward", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	handler.Forward(w, withURLParam(req, "id", "doc-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	forwarder.AssertExpectations(t)
}
