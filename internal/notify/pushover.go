package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPushoverURL is the Pushover message endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// MaxMessageLength is the longest message body Pushover accepts.
const MaxMessageLength = 1024

// DefaultTimeout bounds one delivery request.
const DefaultTimeout = 15 * time.Second

// DeliveryError is a failed delivery to a single recipient.
type DeliveryError struct {
	Recipient  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("delivery to %s failed: %s: %v", e.Recipient, e.Message, e.Cause)
	}
	return fmt.Sprintf("delivery to %s failed: %s", e.Recipient, e.Message)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Pushover delivers messages through the Pushover HTTP API.
type Pushover struct {
	Token  string
	APIURL string
	Title  string
	Client *http.Client
}

// NewPushover creates a Pushover transport. An empty apiURL uses DefaultPushoverURL.
func NewPushover(token, apiURL string, timeout time.Duration) *Pushover {
	if apiURL == "" {
		apiURL = DefaultPushoverURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pushover{
		Token:  token,
		APIURL: apiURL,
		Client: &http.Client{Timeout: timeout},
	}
}

// Deliver posts message to recipient. Any non-2xx response is a failure.
func (p *Pushover) Deliver(ctx context.Context, recipient, message string, attachment *Attachment) error {
	fields := map[string]string{
		"token":   p.Token,
		"user":    recipient,
		"message": Truncate(message, MaxMessageLength),
	}
	if p.Title != "" {
		fields["title"] = p.Title
	}

	body, contentType, err := encodeRequest(fields, attachment)
	if err != nil {
		return &DeliveryError{Recipient: recipient, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIURL, body)
	if err != nil {
		return &DeliveryError{Recipient: recipient, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.Client.Do(req)
	if err != nil {
		return &DeliveryError{Recipient: recipient, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{
			Recipient:  recipient,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}
	return nil
}

// encodeRequest builds a form body, switching to multipart when an attachment is present.
func encodeRequest(fields map[string]string, attachment *Attachment) (io.Reader, string, error) {
	if attachment == nil {
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("attachment", attachment.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
