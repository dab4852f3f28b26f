package webhook

import (
	"bytes"
	"mime/multipart"
)

// buildMultipart encodes the payload once so every attempt can replay the same bytes.
func buildMultipart(p Payload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", p.FileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(p.File); err != nil {
		return nil, "", err
	}

	fields := []struct {
		name  string
		value string
	}{
		{"title", p.Title},
		{"description", p.Description},
		{"code", p.Code},
		{"version", p.Version},
		{"flow", p.Flow},
		{"documentId", p.DocumentID},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if p.CreatedAt != "" {
		if err := w.WriteField("created_at", p.CreatedAt); err != nil {
			return nil, "", err
		}
	}
	if p.CreatedBy != "" {
		if err := w.WriteField("created_by", p.CreatedBy); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
