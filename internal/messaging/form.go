package messaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Image is a header image waiting to be uploaded.
type Image struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Form is what the user fills in to start a batch.
type Form struct {
	Header     HeaderKind
	HeaderText string
	Image      *Image
	Text1      string
	Text2      string
	Text3      string
}

// FieldError is a validation failure on one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field failure of a form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid template form: " + strings.Join(parts, "; ")
}

// Validate checks the form before any message is sent.
func (f Form) Validate() error {
	var fields []FieldError

	if !f.Header.Valid() {
		fields = append(fields, FieldError{Field: "header", Message: "Header must be text or image"})
	}
	if f.Text1 == "" {
		fields = append(fields, FieldError{Field: "text1", Message: "Text1 can't be empty"})
	}
	if f.Header == HeaderText && f.HeaderText == "" {
		fields = append(fields, FieldError{Field: "text", Message: "Header can't be empty"})
	}
	if f.Header == HeaderImage && (f.Image == nil || len(f.Image.Data) == 0) {
		fields = append(fields, FieldError{Field: "image", Message: "Image is required"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Body returns the body variant for the form's texts.
func (f Form) Body() Body {
	return NewBody(f.Text1, f.Text2, f.Text3)
}

// TemplateName is the template name the form will send, without needing
// the media id.
func (f Form) TemplateName() string {
	return string(f.Header) + f.Body().nameSuffix()
}

// DecodeDataURL parses an image given as "data:<mime>;base64,<payload>".
func DecodeDataURL(s string) (*Image, error) {
	meta, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return nil, errors.New("not a data URL")
	}
	meta = strings.TrimPrefix(meta, "data:")
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("unsupported data URL encoding %q", enc)
	}
	if !strings.Contains(mime, "/") {
		return nil, fmt.Errorf("invalid data URL media type %q", mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return &Image{Data: data, MIMEType: mime}, nil
}
