// Package gemini adapts validated generation requests to the Gemini image
// model API and extracts the resulting image bytes. The adapter performs no
// retries; classifying failures is the orchestrator's concern.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// ErrNoImageData reports a model response without inline image bytes in the
// first candidate's first content part. This is a hard failure, not a retry
// condition.
var ErrNoImageData = errors.New("no image data in response")

// Request is one validated model invocation.
type Request struct {
	Prompt      string
	Model       ModelKey
	AspectRatio string
	Resolution  string
	Style       string
}

// Output is the extracted image payload with derived geometry.
type Output struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Client wraps the Gemini SDK for image-only generation calls.
type Client struct {
	client *genai.Client
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{client: c}, nil
}

// Invoke calls the model with an image-only response modality and returns the
// extracted bytes. The aspect ratio always rides in the image config; the
// resolution tier only for the pro model.
func (c *Client) Invoke(ctx context.Context, req Request) (*Output, error) {
	model, err := ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	width, height, err := Dimensions(req.AspectRatio, req.Resolution)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
		},
	}
	if SupportsResolution(req.Model) && req.Resolution != "" {
		cfg.ImageConfig.ImageSize = req.Resolution
	}

	prompt := StyledPrompt(req.Prompt, req.Style)

	slog.Debug("invoking image model", "model", model, "aspect_ratio", req.AspectRatio, "resolution", req.Resolution)

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("generating content with %s: %w", model, err)
	}

	data, mimeType, err := extractImage(resp)
	if err != nil {
		return nil, err
	}

	return &Output{
		Data:     data,
		MIMEType: mimeType,
		Width:    width,
		Height:   height,
	}, nil
}

// extractImage pulls inline image bytes out of the first candidate's first
// content part, the only location the image models populate.
func extractImage(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", ErrNoImageData
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, "", ErrNoImageData
	}
	inline := content.Parts[0].InlineData
	if inline == nil || len(inline.Data) == 0 {
		return nil, "", ErrNoImageData
	}

	mimeType := inline.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return inline.Data, mimeType, nil
}
