// Package telegram provides the Telegram Bot API client used as the
// delivery backend. It implements the dispatch.Sender capability.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kworr/smtp2tg/internal/dispatch"
)

// maxMessageLength is the Bot API limit for a single text message.
const maxMessageLength = 4096

// Client is a minimal Bot API client. It speaks sendMessage and sendDocument;
// the chat id is the routing destination forwarded verbatim.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Client for the given API gateway and bot token.
func NewClient(gateway, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(gateway, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after"`
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *responseParameters `json:"parameters"`
}

// Send delivers one message to a chat: the text payload first, then each
// document as a file. Rate limiting (HTTP 429), server errors and transport
// failures come back as dispatch.TransientError so the dispatcher retries
// them; other API rejections are permanent. Payloads longer than the Bot API
// message limit are truncated with a marker.
func (c *Client) Send(ctx context.Context, msg dispatch.Message) error {
	chatID := int64(msg.Destination)

	if msg.Payload != "" {
		if err := c.sendMessage(ctx, chatID, truncate(msg.Payload)); err != nil {
			return err
		}
	}

	for _, doc := range msg.Documents {
		if err := c.sendDocument(ctx, chatID, doc); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text string) error {
	reqBody, err := json.Marshal(sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) sendDocument(ctx context.Context, chatID int64, doc dispatch.Document) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	fw, err := w.CreateFormFile("document", doc.Name)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if _, err := fw.Write(doc.Data); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req)
}

// do executes one API call and classifies the outcome.
func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &dispatch.TransientError{Err: fmt.Errorf("sending request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode >= 500 {
			return &dispatch.TransientError{Err: fmt.Errorf("telegram returned status %d", resp.StatusCode)}
		}
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}

	if result.OK {
		return nil
	}

	apiErr := fmt.Errorf("telegram: %s (code %d)", result.Description, result.ErrorCode)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Bot API rate limits are per bot, so the hint pauses all lanes.
		var retryAfter time.Duration
		if result.Parameters != nil && result.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(result.Parameters.RetryAfter) * time.Second
		}
		return &dispatch.TransientError{RetryAfter: retryAfter, Global: true, Err: apiErr}
	case resp.StatusCode >= 500:
		return &dispatch.TransientError{Err: apiErr}
	default:
		return apiErr
	}
}

// Ping checks that the token is valid and the gateway reachable.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getMe", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// truncate clips a payload to the Bot API message limit, marking the cut.
func truncate(payload string) string {
	runes := []rune(payload)
	if len(runes) <= maxMessageLength {
		return payload
	}
	const marker = "…"
	return string(runes[:maxMessageLength-1]) + marker
}

// Ensure Client implements dispatch.Sender.
var _ dispatch.Sender = (*Client)(nil)
