package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api"
	"github.com/cloo-solutions/docadmin/internal/service"
)

type ForwardResponse struct {
	DocumentID  string         `json:"document_id"`
	Attempts    int            `json:"attempts"`
	StatusCode  int            `json:"status_code"`
	Response    map[string]any `json:"response"`
	ProcessedAt string         `json:"processed_at"`
}

// ForwardErrorResponse is the 502 body of a failed forward
type ForwardErrorResponse struct {
	Error      string `json:"error"`
	Stage      string `json:"stage"`
	Attempts   int    `json:"attempts"`
	StatusCode int    `json:"status_code,omitempty"`
}

// writeForwardOutcome answers 200 with the webhook reply or 502 with the
// failing stage. Errors before the document was loaded map as domain errors.
func writeForwardOutcome(w http.ResponseWriter, result *service.ForwardResult, err error) {
	if err != nil {
		var ferr *service.ForwardError
		if errors.As(err, &ferr) {
			api.JSON(w, http.StatusBadGateway, ForwardErrorResponse{
				Error:      ferr.Error(),
				Stage:      string(ferr.Stage),
				Attempts:   ferr.Attempts,
				StatusCode: ferr.StatusCode,
			})
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ForwardResponse{
		DocumentID:  result.DocumentID,
		Attempts:    result.Attempts,
		StatusCode:  result.StatusCode,
		Response:    result.Response,
		ProcessedAt: result.ProcessedAt.Format(time.RFC3339),
	})
}
