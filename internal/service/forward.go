package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/telemetry"
	"github.com/cloo-solutions/docadmin/internal/webhook"
)

// ForwardStage names the step of a forward that failed
type ForwardStage string

const (
	StageFetch    ForwardStage = "fetch"
	StageDelivery ForwardStage = "delivery"
	StageParse    ForwardStage = "parse"
	StageStatus   ForwardStage = "status"
)

// ForwardError is returned when a loaded document could not be forwarded.
// Attempts is zero when the webhook was never called.
type ForwardError struct {
	DocumentID string
	Stage      ForwardStage
	Attempts   int
	StatusCode int
	Message    string
	Err        error
}

func (e *ForwardError) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg = msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, msg)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// ForwardResult describes a successful forward
type ForwardResult struct {
	DocumentID  string
	Attempts    int
	StatusCode  int
	Response    map[string]any
	ProcessedAt time.Time
}

// ForwardDocumentRepository is the slice of the document store the forwarder needs
type ForwardDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateProcessingStatus(ctx context.Context, id string, processed bool, at time.Time) error
}

// ObjectDownloader fetches stored file bytes
type ObjectDownloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// WebhookSender delivers a payload with its own retry budget
type WebhookSender interface {
	Send(ctx context.Context, p webhook.Payload) (*webhook.Result, error)
}

// ForwardService hands documents to the processing webhook and records the outcome
type ForwardService struct {
	docRepo ForwardDocumentRepository
	storage ObjectDownloader
	sender  WebhookSender
	now     func() time.Time
}

func NewForwardService(docRepo ForwardDocumentRepository, storage ObjectDownloader, sender WebhookSender) *ForwardService {
	return &ForwardService{
		docRepo: docRepo,
		storage: storage,
		sender:  sender,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewForwardServiceWithClock creates a ForwardService with a fixed clock (for testing)
func NewForwardServiceWithClock(docRepo ForwardDocumentRepository, storage ObjectDownloader, sender WebhookSender, now func() time.Time) *ForwardService {
	s := NewForwardService(docRepo, storage, sender)
	s.now = now
	return s
}

// Forward sends one document to the webhook. A document that cannot be loaded
// is reported as is and leaves no trace; every later failure marks the
// document unprocessed.
func (s *ForwardService) Forward(ctx context.Context, documentID string) (*ForwardResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "forward.document", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "forward",
	})
	defer span.End()

	if documentID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document ID is required")
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	data, err := s.storage.Download(ctx, doc.FilePath)
	if err != nil {
		return nil, s.fail(ctx, span, doc, &ForwardError{
			Stage:   StageFetch,
			Message: "failed to download document file",
			Err:     err,
		})
	}
	telemetry.AddBreadcrumb(ctx, "forward", fmt.Sprintf("downloaded %s (%d bytes)", doc.FilePath, len(data)))

	result, err := s.sender.Send(ctx, buildPayload(doc, data))
	if err != nil {
		return nil, s.fail(ctx, span, doc, classifySendError(err))
	}

	processedAt := s.now()
	if err := s.docRepo.UpdateProcessingStatus(ctx, doc.ID, true, processedAt); err != nil {
		ferr := &ForwardError{
			DocumentID: doc.ID,
			Stage:      StageStatus,
			Attempts:   result.Attempts,
			StatusCode: result.StatusCode,
			Message:    "failed to record processing status",
			Err:        err,
		}
		span.SetError(ferr)
		log.Printf("forward: document %s delivered but %v", doc.ID, ferr)
		return nil, ferr
	}
	doc.MarkProcessed(true, processedAt)

	span.SetData("attempts", result.Attempts)
	log.Printf("forward: document %s processed (status %d, %d attempt(s))", doc.ID, result.StatusCode, result.Attempts)

	return &ForwardResult{
		DocumentID:  doc.ID,
		Attempts:    result.Attempts,
		StatusCode:  result.StatusCode,
		Response:    result.Response,
		ProcessedAt: processedAt,
	}, nil
}

func (s *ForwardService) fail(ctx context.Context, span *telemetry.Span, doc *domain.Document, ferr *ForwardError) error {
	ferr.DocumentID = doc.ID

	failedAt := s.now()
	if err := s.docRepo.UpdateProcessingStatus(ctx, doc.ID, false, failedAt); err != nil {
		log.Printf("forward: document %s: failed to record failure status: %v", doc.ID, err)
		ferr.Err = errors.Join(ferr.Err, err)
	} else {
		doc.MarkProcessed(false, failedAt)
	}

	span.SetTag("forward.stage", string(ferr.Stage))
	span.SetData("attempts", ferr.Attempts)
	span.SetError(ferr)
	log.Printf("forward: document %s %v (%d attempt(s))", doc.ID, ferr, ferr.Attempts)
	return ferr
}

func classifySendError(err error) *ForwardError {
	var derr *webhook.DeliveryError
	if errors.As(err, &derr) {
		return &ForwardError{
			Stage:      StageDelivery,
			Attempts:   derr.Attempts,
			StatusCode: derr.StatusCode,
			Err:        derr,
		}
	}

	var rerr *webhook.ResponseError
	if errors.As(err, &rerr) {
		return &ForwardError{
			Stage:      StageParse,
			Attempts:   rerr.Attempts,
			StatusCode: rerr.StatusCode,
			Err:        rerr,
		}
	}

	return &ForwardError{Stage: StageDelivery, Err: err}
}

func buildPayload(doc *domain.Document, data []byte) webhook.Payload {
	p := webhook.Payload{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		File:        data,
		Title:       doc.Title,
		Description: doc.Description,
		Code:        doc.Code,
		Version:     doc.Version,
		Flow:        string(doc.Flow),
		CreatedBy:   doc.CreatedBy,
	}
	if !doc.CreatedAt.IsZero() {
		p.CreatedAt = doc.CreatedAt.UTC().Format(time.RFC3339)
	}
	return p
}
