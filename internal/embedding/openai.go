package embedding

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "text-embedding-3-small"
	// DefaultOpenAIDimensions matches DefaultOpenAIModel.
	DefaultOpenAIDimensions = 1536

	textEmbedding3Prefix = "text-embedding-3"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint. The SDK's own retry
// loop is disabled; failures surface to the caller immediately.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	apiKey     string
	baseURL    string
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimensions sets the requested vector length.
func WithDimensions(dims int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if dims > 0 {
			e.dimensions = dims
		}
	}
}

// WithAPIKey sets the API key. Without it the SDK reads OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.apiKey = key }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.baseURL = url }
}

// NewOpenAIEmbedder builds an embedder from opts.
func NewOpenAIEmbedder(opts ...OpenAIOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		model:      DefaultOpenAIModel,
		dimensions: DefaultOpenAIDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}

	var clientOpts []option.RequestOption
	if e.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(e.apiKey))
	}
	if e.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
	}
	clientOpts = append(clientOpts, option.WithMaxRetries(0))
	e.client = openai.NewClient(clientOpts...)
	return e
}

// Embed requests one embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	req := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormat("float"),
	}
	if strings.HasPrefix(e.model, textEmbedding3Prefix) {
		req.Dimensions = openai.Int(int64(e.dimensions))
	}

	rsp, err := e.client.Embeddings.New(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}

	src := rsp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the configured vector length.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Model returns the configured model name.
func (e *OpenAIEmbedder) Model() string { return e.model }
