package core

import "context"

// EmbeddingProvider turns one unit of text into a fixed-dimensionality
// vector. Document and query embeddings use different task modes and are not
// interchangeable within the same vector space.
type EmbeddingProvider interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
