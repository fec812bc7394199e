package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"emprendo-intake/internal/domain"
)

const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultModel           = "gpt-4o-mini"
	DefaultModerationModel = "omni-moderation-latest"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Client. Empty fields take the defaults above.
type Options struct {
	BaseURL         string
	APIKey          string
	Model           string
	ModerationModel string
}

// Client talks to an OpenAI-compatible API. It implements grading.Completer
// and grading.Moderator.
type Client struct {
	opts   Options
	client HTTPClient
}

func NewClient(opts Options, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.ModerationModel == "" {
		opts.ModerationModel = DefaultModerationModel
	}
	return &Client{opts: opts, client: client}
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.opts.Model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &cc); err != nil {
		return "", err
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", domain.ErrExternalScoring)
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

// Moderate returns the category flags of the first moderation result.
func (c *Client) Moderate(ctx context.Context, text string) (map[string]bool, error) {
	payload := map[string]any{
		"model": c.opts.ModerationModel,
		"input": text,
	}
	var mr struct {
		Results []struct {
			Flagged    bool            `json:"flagged"`
			Categories map[string]bool `json:"categories"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/moderations", payload, &mr); err != nil {
		return nil, err
	}
	if len(mr.Results) == 0 {
		return nil, fmt.Errorf("%w: no moderation results", domain.ErrExternalScoring)
	}
	return mr.Results[0].Categories, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalScoring, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %d: %s", domain.ErrExternalScoring, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrExternalScoring, path, err)
	}
	return nil
}
