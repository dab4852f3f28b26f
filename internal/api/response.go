// Package api holds the JSON envelope every handler answers with.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/cloo-solutions/docadmin/internal/domain"
)

// SuccessResponse is the {"data": ...} envelope
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the {"error": "..."} envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeInvalidOperation: http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeAlreadyExists:    http.StatusConflict,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeForbidden:        http.StatusForbidden,
}

// JSON writes body with status. A nil body sends headers only.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("api: failed to encode %d response: %v", status, err)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP picks the status for err. Wrapped domain errors map the
// same as bare ones; anything else is a 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := statusByCode[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError answers with the status for err. A domain error at the top of
// the chain shows only its message; a wrapped one shows the full chain.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	if de, ok := err.(*domain.DomainError); ok {
		Error(w, status, de.Message)
		return
	}
	Error(w, status, err.Error())
}

// BodyError answers a failed body read or decode. A body cut off by
// http.MaxBytesReader is a 413, anything else a 400 with message.
func BodyError(w http.ResponseWriter, err error, message string) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
		return
	}
	Error(w, http.StatusBadRequest, message)
}
