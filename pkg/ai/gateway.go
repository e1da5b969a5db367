package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 4 << 20

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI gateway returned HTTP %d: %s", e.StatusCode, e.Message)
}

// GatewayTransport posts {messages, meta} to <endpoint>/chat and reads output.content.
type GatewayTransport struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

func NewGatewayTransport(endpoint, key string, httpClient *http.Client) *GatewayTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GatewayTransport{
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		httpClient: httpClient,
	}
}

func (t *GatewayTransport) Name() string { return "gateway" }

func (t *GatewayTransport) Configured() bool {
	return t.endpoint != "" && t.key != ""
}

func (t *GatewayTransport) Send(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal AI request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create AI request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.key)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "AI gateway request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "failed to read AI gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	content := gjson.GetBytes(raw, "output.content")
	if content.Type != gjson.String || strings.TrimSpace(content.String()) == "" {
		return "", ErrEmptyReply
	}
	return content.String(), nil
}

// errorMessage prefers error, error.message, then message, then the raw body.
func errorMessage(raw []byte, status int) string {
	if gjson.ValidBytes(raw) {
		for _, path := range []string{"error", "error.message", "message"} {
			if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}
