package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"claimdocs-backend/internal/ocr"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

const recognizePrompt = `Transcribe all text visible in this document page.
Preserve the reading order. Output the text only, with no commentary.
If the page contains no readable text, output nothing.`

// Client performs OCR by sending page images to a vision model behind the
// OpenRouter chat completions API.
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

type visionRequest struct {
	Model    string          `json:"model"`
	Messages []visionMessage `json:"messages"`
}

type visionMessage struct {
	Role    string       `json:"role"`
	Content []visionPart `json:"content"`
}

type visionPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) RecognizePage(ctx context.Context, image []byte, mimeType string) (ocr.PageResult, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	reqBody := visionRequest{
		Model: c.Model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionPart{
				{Type: "text", Text: recognizePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL()+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ocr.PageResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("ocr read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ocr.PageResult{}, fmt.Errorf("ocr status %d: %s", resp.StatusCode, firstLine(string(body)))
	}

	var vr visionResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return ocr.PageResult{}, fmt.Errorf("ocr decode: %w", err)
	}
	if vr.Error != nil {
		return ocr.PageResult{}, fmt.Errorf("ocr provider: %s", vr.Error.Message)
	}
	if len(vr.Choices) == 0 {
		return ocr.PageResult{}, fmt.Errorf("ocr response had no choices")
	}

	text := strings.TrimSpace(vr.Choices[0].Message.Content)
	return ocr.PageResult{Text: text, Confidence: ocr.EstimateConfidence(text)}, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
