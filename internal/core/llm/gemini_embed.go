package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/logger"
)

// Retry policy for rate-limited embedding calls: exponential backoff from
// 30s doubling up to a 120s cap, 6 attempts total. When the error carries a
// server-suggested retry delay, the sleep is the larger of that suggestion
// and the current backoff floor.
const (
	embedMaxAttempts = 6
	embedBaseBackoff = 30 * time.Second
	embedMaxBackoff  = 120 * time.Second
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
	log       *logrus.Entry

	// Injection points for tests; defaults call the Gemini API and
	// context-aware time.Sleep.
	call  func(ctx context.Context, text string, task genai.TaskType) ([]float32, error)
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int) (*GeminiEmbedder, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	g := &GeminiEmbedder{
		client:    cl,
		modelName: modelName,
		dim:       dim,
		log:       logger.New("embedder"),
		sleep:     sleepCtx,
	}
	g.call = g.embedOnce
	return g, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedDocument embeds one chunk of document text for indexing.
func (g *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.embedWithRetry(ctx, text, genai.TaskTypeRetrievalDocument)
}

// EmbedQuery embeds a search query. Query vectors are not interchangeable
// with document vectors; retrieval must always use this mode.
func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.embedWithRetry(ctx, text, genai.TaskTypeRetrievalQuery)
}

func (g *GeminiEmbedder) embedOnce(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	em := g.client.EmbeddingModel(g.modelName)
	em.TaskType = task

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini embed: empty response")
	}
	return resp.Embedding.Values, nil
}

func (g *GeminiEmbedder) embedWithRetry(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	wait := embedBaseBackoff

	for attempt := 0; attempt < embedMaxAttempts; attempt++ {
		vec, err := g.call(ctx, text, task)
		if err == nil {
			if g.dim > 0 && len(vec) != g.dim {
				return nil, fmt.Errorf("gemini embed: got %d dims, expected %d", len(vec), g.dim)
			}
			return vec, nil
		}

		suggested, rateLimited := rateLimitDelay(err)
		if !rateLimited {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if attempt == embedMaxAttempts-1 {
			break
		}

		delay := wait
		if suggested > delay {
			delay = suggested
		}
		g.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay_s": delay.Seconds(),
		}).Warn("embedding rate limited, backing off")

		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
		wait *= 2
		if wait > embedMaxBackoff {
			wait = embedMaxBackoff
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts (rate limited)", embedMaxAttempts)
}

// rateLimitDelay reports whether err is a rate-limit response, and if the
// server suggested a retry delay, how long it asked us to wait.
func rateLimitDelay(err error) (time.Duration, bool) {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		limited := ae.HTTPCode() == http.StatusTooManyRequests
		if st := ae.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			limited = true
		}
		if !limited {
			return 0, false
		}
		var delay time.Duration
		if ri := ae.Details().RetryInfo; ri != nil && ri.RetryDelay != nil {
			delay = ri.RetryDelay.AsDuration()
		}
		return delay, true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return 0, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
