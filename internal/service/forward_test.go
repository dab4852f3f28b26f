package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockWebhookSender is a mock implementation of WebhookSender
type MockWebhookSender struct {
	mock.Mock
}

func (m *MockWebhookSender) Send(ctx context.Context, p webhook.Payload) (*webhook.Result, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhook.Result), args.Error(1)
}

var forwardNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func fixedClock() time.Time { return forwardNow }

func forwardDoc() *domain.Document {
	return &domain.Document{
		ID:          "d1",
		Title:       "Safety manual",
		Description: "Plant safety rules",
		Code:        "DOC-001",
		Version:     "1.0.0",
		Flow:        domain.FlowLearner,
		FilePath:    "aprendiz/DOC-001-v1.0.0.pdf",
		FileName:    "DOC-001-v1.0.0.pdf",
		CreatedBy:   "admin-1",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestForwardService_Forward_Success(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)
	file := []byte("%PDF-1.4")

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, "aprendiz/DOC-001-v1.0.0.pdf").Return(file, nil)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(p webhook.Payload) bool {
		return p.DocumentID == "d1" &&
			p.FileName == "DOC-001-v1.0.0.pdf" &&
			string(p.File) == "%PDF-1.4" &&
			p.Code == "DOC-001" &&
			p.Version == "1.0.0" &&
			p.Flow == "aprendiz" &&
			p.CreatedAt == "2026-01-02T03:04:05Z" &&
			p.CreatedBy == "admin-1"
	})).Return(&webhook.Result{StatusCode: 200, Attempts: 1, Response: map[string]any{"message": "ok"}}, nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", true, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	result, err := svc.Forward(ctx, "d1")

	require.NoError(t, err)
	assert.Equal(t, "d1", result.DocumentID)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "ok", result.Response["message"])
	assert.Equal(t, forwardNow, result.ProcessedAt)
	repo.AssertExpectations(t)
	storage.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestForwardService_Forward_EmptyID(t *testing.T) {
	repo := new(MockDocumentRepository)
	svc := NewForwardService(repo, new(MockStorageClient), new(MockWebhookSender))

	_, err := svc.Forward(context.Background(), "")

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestForwardService_Forward_DocumentNotFound(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	result, err := svc.Forward(context.Background(), "missing")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	storage.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateProcessingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestForwardService_Forward_FetchFailure(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, "aprendiz/DOC-001-v1.0.0.pdf").Return(nil, errors.New("NoSuchKey"))
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageFetch, ferr.Stage)
	assert.Equal(t, 0, ferr.Attempts)
	assert.Equal(t, "d1", ferr.DocumentID)
	assert.Equal(t, "fetch failed: failed to download document file: NoSuchKey", ferr.Error())
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestForwardService_Forward_DeliveryFailure(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, &webhook.DeliveryError{
		StatusCode: 404,
		Attempts:   4,
		Message:    "webhook responded 404 Not Found",
	})
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageDelivery, ferr.Stage)
	assert.Equal(t, 4, ferr.Attempts)
	assert.Equal(t, 404, ferr.StatusCode)
	assert.Equal(t, "delivery failed: webhook responded 404 Not Found", ferr.Error())
	repo.AssertExpectations(t)
}

func TestForwardService_Forward_ParseFailure(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, &webhook.ResponseError{
		StatusCode: 200,
		Attempts:   1,
		Err:        errors.New("unexpected end of JSON input"),
	})
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageParse, ferr.Stage)
	assert.Equal(t, 1, ferr.Attempts)
	assert.Equal(t, 200, ferr.StatusCode)
	repo.AssertExpectations(t)
}

func TestForwardService_Forward_StatusUpdateFailure(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(&webhook.Result{StatusCode: 200, Attempts: 2}, nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", true, forwardNow).Return(errors.New("connection reset"))

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageStatus, ferr.Stage)
	assert.Equal(t, 2, ferr.Attempts)
	assert.Contains(t, ferr.Error(), "connection reset")
	repo.AssertNotCalled(t, "UpdateProcessingStatus", mock.Anything, "d1", false, mock.Anything)
}

func TestForwardService_Forward_FailureStatusWriteErrorKeepsStage(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, &webhook.DeliveryError{StatusCode: 500, Attempts: 1, Message: "boom"})
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(errors.New("db down"))

	svc := NewForwardServiceWithClock(repo, storage, sender, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageDelivery, ferr.Stage)
	assert.Contains(t, ferr.Error(), "boom")
	assert.Contains(t, ferr.Error(), "db down")
}

func TestForwardService_Forward_RepeatedForwardRefreshesProcessedAt(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	sender := new(MockWebhookSender)

	first := forwardNow
	second := forwardNow.Add(time.Hour)
	ticks := []time.Time{first, second}
	clock := func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}

	processed := forwardDoc()
	processed.MarkProcessed(true, first)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil).Once()
	repo.On("GetByID", mock.Anything, "d1").Return(processed, nil).Once()
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(&webhook.Result{StatusCode: 200, Attempts: 1}, nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", true, first).Return(nil).Once()
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", true, second).Return(nil).Once()

	svc := NewForwardServiceWithClock(repo, storage, sender, clock)

	r1, err := svc.Forward(context.Background(), "d1")
	require.NoError(t, err)
	r2, err := svc.Forward(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, first, r1.ProcessedAt)
	assert.Equal(t, second, r2.ProcessedAt)
	sender.AssertNumberOfCalls(t, "Send", 2)
	repo.AssertExpectations(t)
}

func newCountingWebhook(t *testing.T, statuses ...int) (*webhook.Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"received"}`))
	}))
	t.Cleanup(srv.Close)

	client := webhook.NewClient(webhook.Config{
		URL:        srv.URL,
		MaxRetries: webhook.DefaultMaxRetries,
		RetryDelay: 0,
		Timeout:    5 * time.Second,
	})
	return client, &calls
}

func TestForwardService_Forward_ExhaustsRetriesAgainstWebhook(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	client, calls := newCountingWebhook(t, 404)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, client, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, StageDelivery, ferr.Stage)
	assert.Equal(t, 4, ferr.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
	repo.AssertExpectations(t)
}

func TestForwardService_Forward_RecoversAfterTransient404(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	client, calls := newCountingWebhook(t, 404, 200)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", true, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, client, fixedClock)
	result, err := svc.Forward(context.Background(), "d1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "received", result.Response["message"])
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestForwardService_Forward_ServerErrorIsNotRetried(t *testing.T) {
	repo := new(MockDocumentRepository)
	storage := new(MockStorageClient)
	client, calls := newCountingWebhook(t, 500)

	repo.On("GetByID", mock.Anything, "d1").Return(forwardDoc(), nil)
	storage.On("Download", mock.Anything, mock.Anything).Return([]byte("x"), nil)
	repo.On("UpdateProcessingStatus", mock.Anything, "d1", false, forwardNow).Return(nil)

	svc := NewForwardServiceWithClock(repo, storage, client, fixedClock)
	_, err := svc.Forward(context.Background(), "d1")

	var ferr *ForwardError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, 1, ferr.Attempts)
	assert.Equal(t, 500, ferr.StatusCode)
	assert.Equal(t, "delivery failed: received", ferr.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
