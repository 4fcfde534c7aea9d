package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"claimdocs-backend/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client analyzes document text via the OpenAI chat completions API with a
// JSON response format.
type Client struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func New(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type analysisPayload struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"keyFindings"`
	NextSteps   []string `json:"nextSteps"`
}

func (c *Client) Analyze(ctx context.Context, in llm.AnalyzeInput) (llm.Result, error) {
	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(in)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0.2,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Result{}, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return llm.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return llm.Result{}, fmt.Errorf("%w: read body: %v", llm.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return llm.Result{}, llm.ErrRateLimited
	case resp.StatusCode >= 500:
		return llm.Result{}, fmt.Errorf("%w: status %d", llm.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return llm.Result{}, fmt.Errorf("%w: status %d: %s", llm.ErrInvalidResponse, resp.StatusCode, truncate(string(body), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return llm.Result{}, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}
	if len(cr.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("%w: no choices", llm.ErrInvalidResponse)
	}

	var out analysisPayload
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return llm.Result{}, fmt.Errorf("%w: content not json: %v", llm.ErrInvalidResponse, err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return llm.Result{}, fmt.Errorf("%w: empty summary", llm.ErrInvalidResponse)
	}

	modelID := cr.Model
	if modelID == "" {
		modelID = c.Model
	}
	return llm.Result{
		Summary:     out.Summary,
		KeyFindings: out.KeyFindings,
		NextSteps:   out.NextSteps,
		ModelID:     modelID,
		TokenCount:  cr.Usage.TotalTokens,
	}, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
