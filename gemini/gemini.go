// Package gemini wraps the Gemini API for image analysis and stateless
// article completion.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/eringen/autoblog/blog"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

var errEmptyResponse = errors.New("gemini returned an empty response")

type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls Gemini models.
type Client struct {
	models models
	model  string
	system string
}

// New creates a Gemini API client. system is an optional system
// instruction sent with completions.
func New(ctx context.Context, apiKey, model, system string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: gc.Models, model: model, system: system}, nil
}

// AnalyzeImages sends the images inline followed by instruction.
func (c *Client) AnalyzeImages(ctx context.Context, images []blog.UploadedImage, instruction string) (string, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.ContentType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}})
	}
	if len(parts) == 0 {
		return "", errors.New("gemini: no image data")
	}
	parts = append(parts, &genai.Part{Text: instruction})
	return c.generate(ctx, "vision", parts, nil)
}

// Complete generates text for a single prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var config *genai.GenerateContentConfig
	if c.system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: c.system}}},
		}
	}
	return c.generate(ctx, "completion", []*genai.Part{{Text: prompt}}, config)
}

func (c *Client) generate(ctx context.Context, op string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		log.Error().Err(err).Str("op", op).Dur("duration", time.Since(start)).Msg("Gemini call failed")
		return "", fmt.Errorf("gemini %s: %w", op, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini %s: %w", op, errEmptyResponse)
	}
	log.Debug().
		Str("op", op).
		Str("model", c.model).
		Int("parts", len(parts)).
		Int("chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Gemini call complete")
	return text, nil
}
