package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowConstants(t *testing.T) {
	tests := []struct {
		name     string
		flow     Flow
		expected string
	}{
		{"Learner", FlowLearner, "aprendiz"},
		{"Instructor", FlowInstructor, "instructor"},
		{"Administrative", FlowAdministrative, "administrativo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.flow))
			assert.True(t, tt.flow.IsValid())
		})
	}
}

func TestFlow_IsValid_Rejects(t *testing.T) {
	assert.False(t, Flow("").IsValid())
	assert.False(t, Flow("learner").IsValid())
	assert.False(t, Flow("APRENDIZ").IsValid())
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "pdf", FileExtension("report.PDF"))
	assert.Equal(t, "docx", FileExtension("a.b.docx"))
	assert.Equal(t, "", FileExtension("noext"))
}

func TestIsAllowedExtension(t *testing.T) {
	assert.True(t, IsAllowedExtension("pdf"))
	assert.True(t, IsAllowedExtension("doc"))
	assert.True(t, IsAllowedExtension("docx"))
	assert.False(t, IsAllowedExtension("exe"))
	assert.False(t, IsAllowedExtension(""))
}

func TestBuildFileNameAndPath(t *testing.T) {
	name := BuildFileName("DOC-001", "1.0.0", "pdf")
	assert.Equal(t, "DOC-001-v1.0.0.pdf", name)
	assert.Equal(t, "instructor/DOC-001-v1.0.0.pdf", BuildFilePath(FlowInstructor, name))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"safety", "onboarding"}, ParseTags(" safety, ,onboarding ,"))
	assert.Equal(t, []string{}, ParseTags(""))
}

func TestDocument_MarkProcessed(t *testing.T) {
	doc := &Document{ID: "d1"}
	now := time.Now().UTC()

	doc.MarkProcessed(true, now)
	assert.True(t, doc.ProcessedByN8N)
	require.NotNil(t, doc.ProcessedAt)
	assert.Equal(t, now, *doc.ProcessedAt)

	later := now.Add(time.Minute)
	doc.MarkProcessed(false, later)
	assert.False(t, doc.ProcessedByN8N)
	assert.Equal(t, later, *doc.ProcessedAt)
}

func validDocument() *Document {
	return &Document{
		ID:       "d1",
		Title:    "Safety manual",
		Code:     "DOC-001",
		Version:  "1.0.0",
		Flow:     FlowLearner,
		FilePath: "aprendiz/DOC-001-v1.0.0.pdf",
		FileName: "DOC-001-v1.0.0.pdf",
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Document)
		wantErr string
	}{
		{"valid", func(d *Document) {}, ""},
		{"missing id", func(d *Document) { d.ID = "" }, "ID is required"},
		{"missing title", func(d *Document) { d.Title = "" }, "Title is required"},
		{"missing code", func(d *Document) { d.Code = "" }, "Code is required"},
		{"missing version", func(d *Document) { d.Version = "" }, "Version is required"},
		{"bad flow", func(d *Document) { d.Flow = "other" }, "invalid flow"},
		{"missing path", func(d *Document) { d.FilePath = "" }, "FilePath is required"},
		{"missing name", func(d *Document) { d.FileName = "" }, "FileName is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDocument()
			tt.mutate(d)
			err := ValidateDocument(d)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDocument_Nil(t *testing.T) {
	assert.Error(t, ValidateDocument(nil))
}

func TestFragment_Contents(t *testing.T) {
	body := "chunk text"
	assert.Equal(t, []string{"chunk text"}, (&Fragment{Content: &body}).Contents())
	assert.Equal(t, []string{}, (&Fragment{}).Contents())
}
