// Package extract is a client for the document-understanding service:
// raw document bytes plus instructions in, extracted text out.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client calls a vision-capable chat-completions endpoint with the document
// attached as a base64 file part.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
}

// Config configures the extraction client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
	}, nil
}

type contentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *filePart `json:"file,omitempty"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// Extract sends the document and instructions and returns the free text
// the service produced.
func (c *Client) Extract(ctx context.Context, filename string, data []byte, instructions string) (string, error) {
	body := struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
	}{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "file", File: &filePart{
					Filename: filename,
					FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
				}},
				{Type: "text", Text: instructions},
			},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	for attempt := 0; ; attempt++ {
		text, retry, err := c.once(ctx, url, payload)
		if err == nil {
			return text, nil
		}
		if retry && attempt < c.maxRetries {
			if err := sleepCtx(ctx, retryDelay(attempt)); err != nil {
				return "", err
			}
			continue
		}
		return "", err
	}
}

func (c *Client) once(ctx context.Context, url string, payload []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("extraction request failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("extraction request failed: %s", resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", false, errors.New("extraction returned no text")
	}
	return out.Choices[0].Message.Content, false, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
