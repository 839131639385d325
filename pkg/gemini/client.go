// Package gemini wraps the google.golang.org/genai SDK behind a small client
// interface covering the content generation the pipeline needs.
package gemini

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "gemini-2.0-flash"

// Client defines the Gemini API operations used by the pipeline.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single-turn generation request, optionally with an
// attached inline image.
type GenerateRequest struct {
	Model  string
	Prompt string
	Image  *ImageAttachment
}

// ImageAttachment is an inline image payload.
type ImageAttachment struct {
	MIMEType string // e.g. "image/jpeg"
	Data     []byte
}

// GenerateResponse is the model reply with text parts concatenated.
type GenerateResponse struct {
	Text string
}

// sdkClient implements Client using the official genai SDK.
type sdkClient struct {
	client *genai.Client
	model  string
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// NewClient creates a new Gemini client backed by the SDK.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}

	c := &sdkClient{client: client, model: DefaultModel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, nil)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	return &GenerateResponse{Text: resp.Text()}, nil
}
