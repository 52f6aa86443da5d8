// Package messaging builds template messages and sends them through the
// WhatsApp Cloud (Graph) API.
//
// A template's shape is a pair of variants: the header (text or image) and
// the body (one, two or three texts). The template name is derived from the
// variants, e.g. "image_text1_text2".
package messaging

// HeaderKind selects the header variant of a template.
type HeaderKind string

const (
	HeaderText  HeaderKind = "text"
	HeaderImage HeaderKind = "image"
)

// Valid reports whether k is a known header kind.
func (k HeaderKind) Valid() bool {
	return k == HeaderText || k == HeaderImage
}

// Parameter is one template component parameter.
type Parameter struct {
	Type  string    `json:"type"`
	Text  string    `json:"text,omitempty"`
	Image *MediaRef `json:"image,omitempty"`
}

// MediaRef points at previously uploaded media.
type MediaRef struct {
	ID string `json:"id"`
}

// Component is a header or body block of a template message.
type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

// Header is the header variant of a template.
type Header interface {
	Kind() HeaderKind
	parameters() []Parameter
}

// TextHeader is a header carrying a text parameter.
type TextHeader struct {
	Text string
}

func (TextHeader) Kind() HeaderKind { return HeaderText }

func (h TextHeader) parameters() []Parameter {
	return []Parameter{{Type: "text", Text: h.Text}}
}

// ImageHeader is a header carrying an uploaded image.
type ImageHeader struct {
	MediaID string
}

func (ImageHeader) Kind() HeaderKind { return HeaderImage }

func (h ImageHeader) parameters() []Parameter {
	return []Parameter{{Type: "image", Image: &MediaRef{ID: h.MediaID}}}
}

// Body is the body variant of a template.
type Body interface {
	nameSuffix() string
	texts() []string
}

// TextOnly is a body with just text1.
//
// Unpaired holds a text3 given without text2. It is still sent as a body
// parameter, but the template name does not account for it, so the API is
// expected to reject the message.
type TextOnly struct {
	Text1    string
	Unpaired string
}

func (TextOnly) nameSuffix() string { return "_text1" }

func (b TextOnly) texts() []string {
	if b.Unpaired != "" {
		return []string{b.Text1, b.Unpaired}
	}
	return []string{b.Text1}
}

// TextPlusOne is a body with text1 and text2.
type TextPlusOne struct {
	Text1, Text2 string
}

func (TextPlusOne) nameSuffix() string { return "_text1_text2" }

func (b TextPlusOne) texts() []string { return []string{b.Text1, b.Text2} }

// TextPlusTwo is a body with text1, text2 and text3.
type TextPlusTwo struct {
	Text1, Text2, Text3 string
}

func (TextPlusTwo) nameSuffix() string { return "_text1_text2_text3" }

func (b TextPlusTwo) texts() []string { return []string{b.Text1, b.Text2, b.Text3} }

// NewBody picks the body variant from which optional texts are present.
func NewBody(text1, text2, text3 string) Body {
	switch {
	case text2 != "" && text3 != "":
		return TextPlusTwo{Text1: text1, Text2: text2, Text3: text3}
	case text2 != "":
		return TextPlusOne{Text1: text1, Text2: text2}
	default:
		return TextOnly{Text1: text1, Unpaired: text3}
	}
}

// Template is a fully shaped template message, minus the recipient.
type Template struct {
	Header Header
	Body   Body
}

// Name returns the template name registered with the messaging provider.
func (t Template) Name() string {
	return string(t.Header.Kind()) + t.Body.nameSuffix()
}

// Components returns the header and body blocks.
func (t Template) Components() []Component {
	body := make([]Parameter, 0, 3)
	for _, s := range t.Body.texts() {
		body = append(body, Parameter{Type: "text", Text: s})
	}
	return []Component{
		{Type: "header", Parameters: t.Header.parameters()},
		{Type: "body", Parameters: body},
	}
}
