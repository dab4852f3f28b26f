package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Flow partitions documents by the audience they serve
type Flow string

const (
	FlowLearner        Flow = "aprendiz"
	FlowInstructor     Flow = "instructor"
	FlowAdministrative Flow = "administrativo"
)

// Flows lists every valid flow in display order
var Flows = []Flow{FlowLearner, FlowInstructor, FlowAdministrative}

// IsValid reports whether f is one of the fixed flows
func (f Flow) IsValid() bool {
	switch f {
	case FlowLearner, FlowInstructor, FlowAdministrative:
		return true
	}
	return false
}

// AllowedExtensions are the file extensions accepted on upload
var AllowedExtensions = []string{"pdf", "doc", "docx"}

// Document is a versioned file registered under a flow
type Document struct {
	ID             string
	Title          string
	Description    string
	Code           string
	Version        string
	Flow           Flow
	FilePath       string
	FileName       string
	Tags           []string
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcessedByN8N bool
	ProcessedAt    *time.Time
}

// FileExtension returns the lower-cased extension of name without the dot
func FileExtension(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExtension reports whether ext may be uploaded
func IsAllowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// BuildFileName returns the stored name "<code>-v<version>.<ext>"
func BuildFileName(code, version, ext string) string {
	return fmt.Sprintf("%s-v%s.%s", code, version, ext)
}

// BuildFilePath returns the storage key "<flow>/<fileName>"
func BuildFilePath(flow Flow, fileName string) string {
	return fmt.Sprintf("%s/%s", flow, fileName)
}

// ParseTags splits a comma-separated tag list, trimming blanks
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MarkProcessed records the outcome of a forward attempt
func (d *Document) MarkProcessed(success bool, at time.Time) {
	d.ProcessedByN8N = success
	d.ProcessedAt = &at
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.Code == "" {
		return fmt.Errorf("document Code is required")
	}

	if d.Version == "" {
		return fmt.Errorf("document Version is required")
	}

	if !d.Flow.IsValid() {
		return ErrInvalidFlow
	}

	if d.FilePath == "" {
		return fmt.Errorf("document FilePath is required")
	}

	if d.FileName == "" {
		return fmt.Errorf("document FileName is required")
	}

	return nil
}
