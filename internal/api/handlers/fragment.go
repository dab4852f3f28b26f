package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/go-chi/chi/v5"
)

type FragmentService interface {
	List(ctx context.Context, page int) (*service.FragmentPage, error)
	Content(ctx context.Context, id int64) ([]string, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*domain.FragmentStats, error)
	Reprocess(ctx context.Context, id int64) (*service.ForwardResult, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.ScoredFragment, error)
}

type FragmentHandler struct {
	svc FragmentService
}

func NewFragmentHandler(svc FragmentService) *FragmentHandler {
	return &FragmentHandler{svc: svc}
}

type FragmentParentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Flow        string `json:"flow"`
}

type FragmentResponse struct {
	ID             int64                   `json:"id"`
	Content        *string                 `json:"content"`
	Metadata       json.RawMessage         `json:"metadata,omitempty"`
	HasEmbedding   bool                    `json:"has_embedding"`
	DocumentID     string                  `json:"document_id,omitempty"`
	ProcessedByN8N bool                    `json:"processed_by_n8n"`
	ProcessedAt    *string                 `json:"processed_at"`
	ChunksCount    int                     `json:"chunks_count"`
	SourceURL      string                  `json:"source_url,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	Document       *FragmentParentResponse `json:"document,omitempty"`
}

type FragmentPageResponse struct {
	Fragments  []*FragmentResponse `json:"fragments"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalCount int64               `json:"total_count"`
	TotalPages int                 `json:"total_pages"`
}

type LastProcessedResponse struct {
	Title       string `json:"title"`
	ProcessedAt string `json:"processed_at"`
}

type FragmentStatsResponse struct {
	TotalVectorized int64                  `json:"total_vectorized"`
	TotalChunks     int64                  `json:"total_chunks"`
	PendingCount    int64                  `json:"pending_count"`
	LastProcessed   *LastProcessedResponse `json:"last_processed"`
}

type SearchFragmentsRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type ScoredFragmentResponse struct {
	*FragmentResponse
	Score float64 `json:"score"`
}

func fragmentToResponse(f *domain.Fragment) *FragmentResponse {
	resp := &FragmentResponse{
		ID:             f.ID,
		Content:        f.Content,
		HasEmbedding:   f.HasEmbedding,
		DocumentID:     f.DocumentID,
		ProcessedByN8N: f.ProcessedByN8N,
		ChunksCount:    f.ChunksCount,
		SourceURL:      f.SourceURL,
		CreatedAt:      f.CreatedAt.Format(time.RFC3339),
	}
	if len(f.Metadata) > 0 {
		resp.Metadata = f.Metadata
	}
	if f.ProcessedAt != nil {
		at := f.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &at
	}
	if f.Parent != nil {
		resp.Document = &FragmentParentResponse{
			ID:          f.Parent.ID,
			Title:       f.Parent.Title,
			Description: f.Parent.Description,
			Flow:        string(f.Parent.Flow),
		}
	}
	return resp
}

func fragmentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *FragmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = n
	}

	result, err := h.svc.List(r.Context(), page)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	frags := make([]*FragmentResponse, 0, len(result.Items))
	for _, f := range result.Items {
		frags = append(frags, fragmentToResponse(f))
	}

	api.Success(w, http.StatusOK, FragmentPageResponse{
		Fragments:  frags,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

func (h *FragmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := FragmentStatsResponse{
		TotalVectorized: stats.TotalVectorized,
		TotalChunks:     stats.TotalChunks,
		PendingCount:    stats.PendingCount,
	}
	if stats.LastProcessed != nil {
		resp.LastProcessed = &LastProcessedResponse{
			Title:       stats.LastProcessed.Title,
			ProcessedAt: stats.LastProcessed.ProcessedAt.Format(time.RFC3339),
		}
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *FragmentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchFragmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.BodyError(w, err, "invalid request body")
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*ScoredFragmentResponse, 0, len(results))
	for _, sf := range results {
		resp = append(resp, &ScoredFragmentResponse{
			FragmentResponse: fragmentToResponse(sf.Fragment),
			Score:            sf.Score,
		})
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *FragmentHandler) Content(w http.ResponseWriter, r *http.Request) {
	id, ok := fragmentID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid fragment id")
		return
	}

	content, err := h.svc.Content(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"id": id, "content": content})
}

func (h *FragmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := fragmentID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid fragment id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reprocess forwards the fragment's parent document again.
func (h *FragmentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := fragmentID(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid fragment id")
		return
	}

	result, err := h.svc.Reprocess(context.WithoutCancel(r.Context()), id)
	writeForwardOutcome(w, result, err)
}
