// Package synthesis is a client for the answer-synthesis service. It turns
// a query and retrieved context text into an answer; condition queries get
// a verdict-first prompt so the answer starts with YES, NO or UNKNOWN.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"docqa/internal/domain"
)

const questionPrompt = "You answer questions about documents. Use only the " +
	"provided context. If the context does not contain the answer, say so. " +
	"Answer in the language of the question, briefly and precisely."

const conditionPrompt = "You verify statements about documents. Use only the " +
	"provided context. Start your reply with exactly one token: YES if the " +
	"statement holds, NO if it does not, UNKNOWN if the context is " +
	"insufficient. Then explain in one or two sentences."

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
}

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
		t = 60 * time.Second
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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Synthesize produces the answer text for one query from the context.
func (c *Client) Synthesize(ctx context.Context, query domain.Query, contextText string) (string, error) {
	system := questionPrompt
	if query.Type == domain.QueryTypeCondition {
		system = conditionPrompt
	}
	body := struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
	}{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Context:\n" + contextText + "\n\nQuery: " + query.Text},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	for attempt := 0; ; attempt++ {
		answer, retry, err := c.once(ctx, url, payload)
		if err == nil {
			return answer, nil
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

func (c *Client) once(ctx context.Context, url string, payload []byte) (answer string, retry bool, err error) {
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
		return "", true, fmt.Errorf("synthesis request failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("synthesis request failed: %s", resp.Status)
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
		return "", false, errors.New("synthesis returned no answer")
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
