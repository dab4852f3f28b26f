package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"strings"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/pagination"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDocumentPageSize = 20
	MaxDocumentPageSize     = 100
)

// StorageClientInterface is the object store holding document files
type StorageClientInterface interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByCodeVersion(ctx context.Context, code, version string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, filter DocumentFilter, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.Document, error)
	CountByFlow(ctx context.Context, flow domain.Flow) (int64, error)
	UpdateProcessingStatus(ctx context.Context, id string, processed bool, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	Flow  domain.Flow
	Query string
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles the document catalogue and its stored files
type DocumentService struct {
	docRepo DocumentRepositoryInterface
	storage StorageClientInterface
	uuidGen UUIDGenerator
}

func NewDocumentService(docRepo DocumentRepositoryInterface, storage StorageClientInterface) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		storage: storage,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(docRepo DocumentRepositoryInterface, storage StorageClientInterface, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		storage: storage,
		uuidGen: uuidGen,
	}
}

type CreateDocumentInput struct {
	Title       string
	Description string
	Code        string
	Version     string
	Flow        string
	Tags        string
	FileName    string
	ContentType string
	Data        []byte
	ActorID     string
}

func (input CreateDocumentInput) missingField() bool {
	return strings.TrimSpace(input.Flow) == "" ||
		strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(input.Description) == "" ||
		strings.TrimSpace(input.Code) == "" ||
		strings.TrimSpace(input.Version) == "" ||
		input.FileName == "" ||
		len(input.Data) == 0
}

// Create stores the file under "<flow>/<code>-v<version>.<ext>" and registers it.
// The uploaded object is removed again if the row cannot be inserted.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	if input.missingField() {
		return nil, domain.ErrMissingRequiredField
	}

	flow := domain.Flow(strings.TrimSpace(input.Flow))
	if !flow.IsValid() {
		return nil, domain.ErrInvalidFlow
	}

	ext := domain.FileExtension(input.FileName)
	if !domain.IsAllowedExtension(ext) {
		return nil, domain.ErrInvalidFileType
	}

	code := strings.TrimSpace(input.Code)
	version := strings.TrimSpace(input.Version)

	existing, err := s.docRepo.GetByCodeVersion(ctx, code, version)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("failed to check for existing document: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDocumentAlreadyExists
	}

	fileName := domain.BuildFileName(code, version, ext)
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          s.uuidGen.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Code:        code,
		Version:     version,
		Flow:        flow,
		FilePath:    domain.BuildFilePath(flow, fileName),
		FileName:    fileName,
		Tags:        domain.ParseTags(input.Tags),
		CreatedBy:   input.ActorID,
		UpdatedBy:   input.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.storage.Upload(ctx, doc.FilePath, input.Data, contentTypeFor(input.ContentType, ext)); err != nil {
		return nil, fmt.Errorf("failed to upload document file: %w", err)
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		if rmErr := s.storage.Remove(ctx, doc.FilePath); rmErr != nil {
			log.Printf("documents: failed to remove orphaned object %s: %v", doc.FilePath, rmErr)
		}
		return nil, err
	}

	return doc, nil
}

func contentTypeFor(declared, ext string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension("." + ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document ID is required")
	}
	return s.docRepo.GetByID(ctx, id)
}

type ListDocumentsInput struct {
	Flow   string
	Query  string
	Limit  int
	Cursor string
}

// List returns documents newest first, optionally filtered by flow and a
// case-insensitive match on title or description.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*DocumentPageResult, error) {
	filter := DocumentFilter{Query: strings.TrimSpace(input.Query)}
	if input.Flow != "" {
		filter.Flow = domain.Flow(input.Flow)
		if !filter.Flow.IsValid() {
			return nil, domain.ErrInvalidFlow
		}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultDocumentPageSize
	}
	if limit > MaxDocumentPageSize {
		limit = MaxDocumentPageSize
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	return s.docRepo.ListWithCursor(ctx, filter, cursor, limit)
}

// ListPending returns documents the webhook has not accepted yet, oldest first.
func (s *DocumentService) ListPending(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit < 0 {
		limit = 0
	}
	return s.docRepo.ListUnprocessed(ctx, limit)
}

// CountByFlow returns the number of documents in every flow, zero-filled.
func (s *DocumentService) CountByFlow(ctx context.Context) (map[domain.Flow]int64, error) {
	counts := make([]int64, len(domain.Flows))

	g, gctx := errgroup.WithContext(ctx)
	for i, flow := range domain.Flows {
		g.Go(func() error {
			n, err := s.docRepo.CountByFlow(gctx, flow)
			if err != nil {
				return fmt.Errorf("failed to count %s documents: %w", flow, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[domain.Flow]int64, len(domain.Flows))
	for i, flow := range domain.Flows {
		result[flow] = counts[i]
	}
	return result, nil
}

// DocumentFile is a stored file ready to be served as an attachment
type DocumentFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (s *DocumentService) Download(ctx context.Context, id string) (*DocumentFile, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.storage.Download(ctx, doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download document file: %w", err)
	}

	return &DocumentFile{
		FileName:    doc.FileName,
		ContentType: contentTypeFor("", domain.FileExtension(doc.FileName)),
		Data:        data,
	}, nil
}

// ViewURL returns a presigned URL for the object at path, valid for one hour.
func (s *DocumentService) ViewURL(ctx context.Context, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "file path is required")
	}

	url, err := s.storage.GenerateDownloadURL(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to generate view URL: %w", err)
	}
	return url, nil
}

// Delete removes the stored object first, then the row.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.Remove(ctx, doc.FilePath); err != nil {
		return fmt.Errorf("failed to remove document file: %w", err)
	}

	return s.docRepo.Delete(ctx, doc.ID)
}
