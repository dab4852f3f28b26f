package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/pagination"
	"github.com/cloo-solutions/docadmin/internal/telemetry"
)

const (
	FragmentPageSize   = 10
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// FragmentRepositoryInterface defines the repository interface for vectorized fragments
type FragmentRepositoryInterface interface {
	ListPage(ctx context.Context, offset, limit int) ([]*domain.Fragment, int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Fragment, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*domain.FragmentStats, error)
	SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*domain.ScoredFragment, error)
}

// QueryEmbedder turns a search query into an embedding
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentForwarder forwards a document by id
type DocumentForwarder interface {
	Forward(ctx context.Context, documentID string) (*ForwardResult, error)
}

// FragmentPage is one page of the vectorized table
type FragmentPage struct {
	Items      []*domain.Fragment
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
}

type FragmentService struct {
	fragRepo  FragmentRepositoryInterface
	forwarder DocumentForwarder
	embedder  QueryEmbedder
}

// NewFragmentService creates a FragmentService. embedder may be nil, in which
// case Search reports that semantic search is not configured.
func NewFragmentService(fragRepo FragmentRepositoryInterface, forwarder DocumentForwarder, embedder QueryEmbedder) *FragmentService {
	return &FragmentService{
		fragRepo:  fragRepo,
		forwarder: forwarder,
		embedder:  embedder,
	}
}

// List returns a 1-based page of fragments, most recently processed first.
func (s *FragmentService) List(ctx context.Context, page int) (*FragmentPage, error) {
	if page < 1 {
		page = 1
	}

	items, total, err := s.fragRepo.ListPage(ctx, pagination.Offset(page, FragmentPageSize), FragmentPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	if items == nil {
		items = []*domain.Fragment{}
	}

	return &FragmentPage{
		Items:      items,
		Page:       page,
		PageSize:   FragmentPageSize,
		TotalCount: total,
		TotalPages: pagination.TotalPages(total, FragmentPageSize),
	}, nil
}

func (s *FragmentService) Content(ctx context.Context, id int64) ([]string, error) {
	frag, err := s.fragRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return frag.Contents(), nil
}

func (s *FragmentService) Delete(ctx context.Context, id int64) error {
	return s.fragRepo.Delete(ctx, id)
}

func (s *FragmentService) Stats(ctx context.Context) (*domain.FragmentStats, error) {
	stats, err := s.fragRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fragment stats: %w", err)
	}
	return stats, nil
}

// Reprocess forwards the fragment's parent document again.
func (s *FragmentService) Reprocess(ctx context.Context, id int64) (*ForwardResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "fragment.reprocess", telemetry.SpanAttributes{
		FragmentID: strconv.FormatInt(id, 10),
		Operation:  "reprocess",
	})
	defer span.End()

	frag, err := s.fragRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if frag.DocumentID == "" {
		return nil, domain.ErrFragmentWithoutDoc
	}
	return s.forwarder.Forward(ctx, frag.DocumentID)
}

// Search ranks fragments by cosine similarity to the query.
func (s *FragmentService) Search(ctx context.Context, query string, limit int) ([]*domain.ScoredFragment, error) {
	if s.embedder == nil {
		return nil, domain.ErrSearchNotConfigured
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "search query is required")
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	results, err := s.fragRepo.SearchByEmbedding(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search fragments: %w", err)
	}
	if results == nil {
		results = []*domain.ScoredFragment{}
	}
	return results, nil
}
