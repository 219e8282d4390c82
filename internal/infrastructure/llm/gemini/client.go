package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/legal-assistant/internal/core/domain"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/resilience"
)

// maxBatchSize is the BatchEmbedContents request limit.
const maxBatchSize = 100

type Client struct {
	client     *genai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

type Options struct {
	Executor *resilience.Executor
}

func New(ctx context.Context, apiKey, genModel, embedModel string, options Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:     client,
		genModel:   genModel,
		embedModel: embedModel,
		executor:   options.Executor,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, systemInstructions, userContent string, opts domain.GenerateOptions) (string, error) {
	model := g.client.client.GenerativeModel(g.client.genModel)
	configureModel(model, systemInstructions, opts)

	return call(ctx, g.client, "generate", func(ctx context.Context) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(userContent))
		if err != nil {
			return "", err
		}
		return responseText(resp)
	})
}

func configureModel(model *genai.GenerativeModel, systemInstructions string, opts domain.GenerateOptions) {
	if strings.TrimSpace(systemInstructions) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstructions)}}
	}
	model.SetTemperature(float32(opts.Temperature))
	if opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}
	if opts.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(opts.Schema)
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("gemini candidate has no content (finish reason %s)", candidate.FinishReason)
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.client.client.EmbeddingModel(e.client.embedModel)
	model.TaskType = genai.TaskTypeRetrievalDocument

	return call(ctx, e.client, "embed", func(ctx context.Context) ([][]float32, error) {
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("gemini embed returned %d vectors for %d inputs", len(resp.Embeddings), len(texts))
		}
		vectors := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			vectors[i] = emb.Values
		}
		return vectors, nil
	})
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	model := e.client.client.EmbeddingModel(e.client.embedModel)
	model.TaskType = genai.TaskTypeRetrievalQuery

	return call(ctx, e.client, "embed_query", func(ctx context.Context) ([]float32, error) {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("empty embedding result")
		}
		return resp.Embedding.Values, nil
	})
}

func call[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error)) (T, error) {
	out, err := resilience.Call(ctx, c.executor, "gemini."+operation, fn, classifyGeminiError)
	return out, resilience.MarkTemporary("gemini "+operation, err, classifyGeminiError)
}
