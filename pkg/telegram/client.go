package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/EternisAI/image-vault/pkg/redact"
)

const (
	TelegramAPIBase = "https://api.telegram.org"

	// PollTimeout is the long-poll duration requested from getUpdates.
	PollTimeout = 30 * time.Second
)

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// Client talks to the Bot API directly over HTTP.
type Client struct {
	logger  *log.Logger
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(logger *log.Logger, token string) *Client {
	return &Client{
		logger:  logger,
		token:   token,
		baseURL: TelegramAPIBase,
		client: &http.Client{
			Timeout: PollTimeout + 15*time.Second,
		},
	}
}

// WithBaseURL points the client at another Bot API server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// redactedURL is methodURL without the bot token, for errors and logs.
func (c *Client) redactedURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, redact.Placeholder, method)
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s request", method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.redactedURL(method)
		}
		return errors.Wrapf(err, "failed to send %s request", method)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", method)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrapf(err, "failed to decode %s response (status %d)", method, resp.StatusCode)
	}
	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", method)
	}
	return nil
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}, &updates)
	return updates, err
}

func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	err := c.call(ctx, "getMe", map[string]any{}, &me)
	return me, err
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// SendPhoto re-sends a stored photo by its file id.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID string) error {
	return c.call(ctx, "sendPhoto", map[string]any{
		"chat_id": chatID,
		"photo":   fileID,
	}, nil)
}

// SendDocument re-sends a stored document by its file id.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID string) error {
	return c.call(ctx, "sendDocument", map[string]any{
		"chat_id":  chatID,
		"document": fileID,
	}, nil)
}

// SendDocumentBytes uploads data as a new document named fileName.
func (c *Client) SendDocumentBytes(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return errors.Wrap(err, "failed to write chat_id field")
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return errors.Wrap(err, "failed to write caption field")
		}
	}
	part, err := w.CreateFormFile("document", fileName)
	if err != nil {
		return errors.Wrap(err, "failed to create document part")
	}
	if _, err := part.Write(data); err != nil {
		return errors.Wrap(err, "failed to write document part")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &body)
	if err != nil {
		return errors.Wrap(err, "failed to create sendDocument request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, "sendDocument", nil)
}
