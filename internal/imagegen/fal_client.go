package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/domain"
)

type FalOptions struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// FalClient calls a fal.ai text-to-image model synchronously.
type FalClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
}

func NewFalClient(opts FalOptions) *FalClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://fal.run"
	}
	model := strings.Trim(opts.Model, "/")
	if model == "" {
		model = "fal-ai/qwen-image"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &FalClient{
		httpClient: client,
		baseURL:    base,
		model:      model,
		token:      strings.TrimSpace(opts.APIKey),
	}
}

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falRequest struct {
	Prompt    string       `json:"prompt"`
	ImageSize falImageSize `json:"image_size"`
	NumImages int          `json:"num_images"`
}

type falResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
	Detail json.RawMessage `json:"detail"`
}

func (c *FalClient) Generate(ctx context.Context, req Request) ([]domain.Image, error) {
	if c == nil {
		return nil, errors.New("fal client not configured")
	}
	if c.token == "" {
		return nil, errors.New("fal: API key is missing")
	}
	payload := falRequest{
		Prompt:    req.Prompt,
		ImageSize: falImageSize{Width: req.Width, Height: req.Height},
		NumImages: req.NumOutputs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("fal: read response: %w", err)
	}
	var out falResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("fal: http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("fal: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if detail := falDetail(out.Detail); detail != "" {
			return nil, fmt.Errorf("fal error: %s (http %d)", detail, resp.StatusCode)
		}
		return nil, fmt.Errorf("fal: http %d", resp.StatusCode)
	}

	images := make([]domain.Image, 0, len(out.Images))
	for _, img := range out.Images {
		url := strings.TrimSpace(img.URL)
		if url == "" {
			continue
		}
		width, height := img.Width, img.Height
		if width == 0 {
			width = req.Width
		}
		if height == 0 {
			height = req.Height
		}
		images = append(images, domain.Image{URL: url, Width: width, Height: height})
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

// falDetail flattens the error detail, which is either a string or a list
// of validation objects.
func falDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}
