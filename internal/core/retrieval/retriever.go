package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/corpora/internal/logger"
	"github.com/markdave123-py/corpora/internal/models"
)

// ChunkSearcher runs a similarity search over embedded chunks visible to the
// given scope.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, scope Scope, topK int) ([]models.ScoredChunk, error)
}

// QueryEmbedder turns a query string into a search vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers "what does the corpus say about X" for one caller.
// Retrieval never fails a chat: every degraded path returns empty context so
// the model answers from its own knowledge instead.
type Retriever struct {
	store    ChunkSearcher
	embedder QueryEmbedder
	topK     int
	log      *logrus.Entry
}

func NewRetriever(store ChunkSearcher, embedder QueryEmbedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		log:      logger.New("retrieval"),
	}
}

// Retrieve embeds the query, searches within scope and assembles the prompt
// context plus citations, best match first.
func (r *Retriever) Retrieve(ctx context.Context, query string, scope Scope) (string, []models.Citation) {
	if r.embedder == nil {
		r.log.Warn("no embedding provider, skipping retrieval")
		return "", nil
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.log.WithError(err).Warn("query embedding failed, answering without context")
		return "", nil
	}

	chunks, err := r.store.SearchChunks(ctx, vec, scope, r.topK)
	if err != nil {
		r.log.WithError(err).Warn("chunk search failed, answering without context")
		return "", nil
	}
	if len(chunks) == 0 {
		return "", nil
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Distance < chunks[j].Distance
	})
	if len(chunks) > r.topK {
		chunks = chunks[:r.topK]
	}

	parts := make([]string, 0, len(chunks))
	citations := make([]models.Citation, 0, len(chunks))
	for _, ch := range chunks {
		parts = append(parts, "[Source: "+ch.Filename+"]\n"+ch.Content)
		citations = append(citations, models.Citation{
			DocID:      ch.DocumentID,
			Filename:   ch.Filename,
			ChunkIndex: ch.ChunkIndex,
			// The full chunk text; clients render the source card from it.
			Excerpt: ch.Content,
			Source:  ch.Source,
		})
	}
	return strings.Join(parts, "\n\n---\n\n"), citations
}
