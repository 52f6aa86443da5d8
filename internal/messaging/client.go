package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JonMunkholm/leaddesk/internal/observability"
)

const messagingProduct = "whatsapp"

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 64 << 10

// ErrImageTooLarge is returned when a header image exceeds the configured limit.
var ErrImageTooLarge = errors.New("image too large")

// APIError is a non-200 response from the Graph API.
type APIError struct {
	Op     string // "upload" or "send"
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.Status }

// Detail returns the response body when it is valid JSON, otherwise nil.
func (e *APIError) Detail() json.RawMessage {
	if json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL       string // e.g. https://graph.facebook.com/v21.0
	PhoneNumberID string
	Token         string
	CountryCode   string
	Language      string
	MaxImageSize  int64
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client talks to the Graph API on behalf of one WhatsApp phone number.
type Client struct {
	opts Options
	http *http.Client
}

// NewClient creates a client. A nil HTTPClient gets one with opts.Timeout.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts, http: hc}
}

func (c *Client) endpoint(path string) string {
	return c.opts.BaseURL + "/" + c.opts.PhoneNumberID + "/" + path
}

// Recipient returns the address a local number is sent to.
func (c *Client) Recipient(number string) string {
	return c.opts.CountryCode + strings.TrimSpace(number)
}

// UploadMedia uploads an image and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, img *Image) (string, error) {
	ctx, span := observability.StartSpan(ctx, "messaging.upload",
		attribute.String("mime", img.MIMEType),
		attribute.Int("bytes", len(img.Data)),
	)
	defer span.End()

	if c.opts.MaxImageSize > 0 && int64(len(img.Data)) > c.opts.MaxImageSize {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, len(img.Data), c.opts.MaxImageSize)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, uploadFilename(img)))
	h.Set("Content-Type", img.MIMEType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("type", img.MIMEType); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("messaging_product", messagingProduct); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("media"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req, "upload")
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("upload response carried no media id")
	}
	return out.ID, nil
}

// sendRequest is the JSON body of a template send.
type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         templateBody `json:"template"`
}

type templateBody struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []Component `json:"components"`
}

type language struct {
	Code string `json:"code"`
}

// newSendRequest builds the request body for one recipient.
func (c *Client) newSendRequest(number string, tpl Template) sendRequest {
	return sendRequest{
		MessagingProduct: messagingProduct,
		To:               c.Recipient(number),
		Type:             "template",
		Template: templateBody{
			Name:       tpl.Name(),
			Language:   language{Code: c.opts.Language},
			Components: tpl.Components(),
		},
	}
}

// SendTemplate sends a template message to a local number.
func (c *Client) SendTemplate(ctx context.Context, number string, tpl Template) error {
	ctx, span := observability.StartSpan(ctx, "messaging.send",
		attribute.String("template", tpl.Name()),
	)
	defer span.End()

	if strings.TrimSpace(number) == "" {
		return errors.New("recipient number is empty")
	}

	payload, err := json.Marshal(c.newSendRequest(number, tpl))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("messages"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req, "send"); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// do sends an authenticated request. Only 200 counts as success.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func uploadFilename(img *Image) string {
	if img.Filename != "" {
		return img.Filename
	}
	ext := "bin"
	if _, sub, ok := strings.Cut(img.MIMEType, "/"); ok && sub != "" {
		ext = sub
	}
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	return "file_" + ts + "." + ext
}

// TemplateSender sends one form to many recipients. An image header is
// uploaded before the first send; once an upload succeeds its media id is
// reused, and until then every send retries the upload.
type TemplateSender struct {
	client *Client
	form   Form

	mu      sync.Mutex
	mediaID string
}

// NewTemplateSender validates the form and binds it to the client.
func (c *Client) NewTemplateSender(form Form) (*TemplateSender, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return &TemplateSender{client: c, form: form}, nil
}

// TemplateName returns the template the sender uses.
func (s *TemplateSender) TemplateName() string { return s.form.TemplateName() }

// Send delivers the template to one number.
func (s *TemplateSender) Send(ctx context.Context, number string) error {
	header, err := s.header(ctx)
	if err != nil {
		return err
	}
	return s.client.SendTemplate(ctx, number, Template{Header: header, Body: s.form.Body()})
}

func (s *TemplateSender) header(ctx context.Context) (Header, error) {
	if s.form.Header == HeaderText {
		return TextHeader{Text: s.form.HeaderText}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mediaID == "" {
		id, err := s.client.UploadMedia(ctx, s.form.Image)
		if err != nil {
			return nil, fmt.Errorf("upload header image: %w", err)
		}
		s.mediaID = id
	}
	return ImageHeader{MediaID: s.mediaID}, nil
}
