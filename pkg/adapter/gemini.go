package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	DefaultGenerativeModel = "gemini-2.0-flash"
	DefaultEmbeddingModel  = "text-embedding-004"
	DefaultEmbeddingDim    = 768
)

// Gemini is the inference interface for the QA engine. GenerateContent
// drives the tool-calling conversation; Embedding vectorizes text for
// memory search.
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// GeminiClient implements Gemini on Vertex AI.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	embeddingDim   int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		c.model = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		c.embeddingModel = model
	}
}

func WithEmbeddingDim(dim int32) GeminiOption {
	return func(c *GeminiClient) {
		c.embeddingDim = dim
	}
}

// NewGemini creates a Vertex AI backed Gemini client.
func NewGemini(ctx context.Context, projectID, location string, options ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client",
			goerr.V("project", projectID),
			goerr.V("location", location))
	}

	c := &GeminiClient{
		client:         client,
		model:          DefaultGenerativeModel,
		embeddingModel: DefaultEmbeddingModel,
		embeddingDim:   DefaultEmbeddingDim,
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

func (c *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", c.model))
	}
	return resp, nil
}

func (c *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	dim := c.embeddingDim
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", c.embeddingModel))
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response", goerr.V("model", c.embeddingModel))
	}
	return resp.Embeddings[0].Values, nil
}
