package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api"
	"github.com/cloo-solutions/docadmin/internal/api/middleware"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is buffered before spilling to disk
const multipartMemory = 32 << 20

type DocumentService interface {
	Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.DocumentPageResult, error)
	CountByFlow(ctx context.Context) (map[domain.Flow]int64, error)
	Download(ctx context.Context, id string) (*service.DocumentFile, error)
	ViewURL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, id string) error
}

type Forwarder interface {
	Forward(ctx context.Context, documentID string) (*service.ForwardResult, error)
}

type DocumentHandler struct {
	svc       DocumentService
	forwarder Forwarder
}

func NewDocumentHandler(svc DocumentService, forwarder Forwarder) *DocumentHandler {
	return &DocumentHandler{svc: svc, forwarder: forwarder}
}

type DocumentResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Code           string   `json:"code"`
	Version        string   `json:"version"`
	Flow           string   `json:"flow"`
	FilePath       string   `json:"file_path"`
	FileName       string   `json:"file_name"`
	Tags           []string `json:"tags"`
	CreatedBy      string   `json:"created_by,omitempty"`
	UpdatedBy      string   `json:"updated_by,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	ProcessedByN8N bool     `json:"processed_by_n8n"`
	ProcessedAt    *string  `json:"processed_at"`
}

type ListDocumentsResponse struct {
	Documents  []*DocumentResponse `json:"documents"`
	NextCursor string              `json:"next_cursor,omitempty"`
	HasMore    bool                `json:"has_more"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Code:           d.Code,
		Version:        d.Version,
		Flow:           string(d.Flow),
		FilePath:       d.FilePath,
		FileName:       d.FileName,
		Tags:           d.Tags,
		CreatedBy:      d.CreatedBy,
		UpdatedBy:      d.UpdatedBy,
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      d.UpdatedAt.Format(time.RFC3339),
		ProcessedByN8N: d.ProcessedByN8N,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if d.ProcessedAt != nil {
		at := d.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &at
	}
	return resp
}

// Create accepts multipart/form-data with the metadata fields and a "file" part.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetActorID(r.Context())
	if actorID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		api.BodyError(w, err, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := service.CreateDocumentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Code:        r.FormValue("code"),
		Version:     r.FormValue("version"),
		Flow:        r.FormValue("flow"),
		Tags:        r.FormValue("tags"),
		ActorID:     actorID,
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			api.BodyError(w, err, "failed to read uploaded file")
			return
		}
		input.FileName = header.Filename
		input.ContentType = header.Header.Get("Content-Type")
		input.Data = data
	}

	doc, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		Flow:   q.Get("flow"),
		Query:  q.Get("q"),
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	docs := make([]*DocumentResponse, 0, len(page.Items))
	for _, d := range page.Items {
		docs = append(docs, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, ListDocumentsResponse{
		Documents:  docs,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *DocumentHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.CountByFlow(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make(map[string]int64, len(counts))
	for flow, n := range counts {
		resp[string(flow)] = n
	}
	api.Success(w, http.StatusOK, resp)
}

// View redirects to a short-lived signed URL for the form field "path".
func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.ViewURL(r.Context(), r.FormValue("path"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// Forward runs detached from the request so a client disconnect does not cut
// the retry budget short.
func (h *DocumentHandler) Forward(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	result, err := h.forwarder.Forward(ctx, chi.URLParam(r, "id"))
	writeForwardOutcome(w, result, err)
}
