package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/markdave123-py/corpora/internal/logger"
)

func rateLimitErr(t *testing.T, retryAfter time.Duration) error {
	t.Helper()
	st := status.New(codes.ResourceExhausted, "quota exceeded")
	if retryAfter > 0 {
		var err error
		st, err = st.WithDetails(&errdetails.RetryInfo{
			RetryDelay: durationpb.New(retryAfter),
		})
		require.NoError(t, err)
	}
	ae, ok := apierror.FromError(st.Err())
	require.True(t, ok)
	return ae
}

func newTestEmbedder(dim int) (*GeminiEmbedder, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	g := &GeminiEmbedder{
		dim: dim,
		log: logger.New("embedder-test"),
		sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
	return g, sleeps
}

func TestEmbedRetriesUntilSuccess(t *testing.T) {
	g, sleeps := newTestEmbedder(3)

	calls := 0
	g.call = func(context.Context, string, genai.TaskType) ([]float32, error) {
		calls++
		if calls <= 5 {
			return nil, rateLimitErr(t, 0)
		}
		return []float32{1, 2, 3}, nil
	}

	vec, err := g.EmbedDocument(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 6, calls)

	// Backoff doubles from 30s and caps at 120s.
	require.Len(t, *sleeps, 5)
	assert.Equal(t, []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		120 * time.Second,
		120 * time.Second,
	}, *sleeps)
}

func TestEmbedHonorsServerRetryDelay(t *testing.T) {
	g, sleeps := newTestEmbedder(2)

	calls := 0
	g.call = func(context.Context, string, genai.TaskType) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, rateLimitErr(t, 45*time.Second)
		}
		return []float32{0.5, 0.5}, nil
	}

	_, err := g.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 45*time.Second, (*sleeps)[0])
}

func TestEmbedExhaustsAttempts(t *testing.T) {
	g, sleeps := newTestEmbedder(2)

	calls := 0
	g.call = func(context.Context, string, genai.TaskType) ([]float32, error) {
		calls++
		return nil, rateLimitErr(t, 0)
	}

	_, err := g.EmbedDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 6 attempts")
	assert.Equal(t, 6, calls)
	// No sleep after the final attempt.
	assert.Len(t, *sleeps, 5)
}

func TestEmbedNonRateLimitErrorSurfacesImmediately(t *testing.T) {
	g, sleeps := newTestEmbedder(2)

	boom := errors.New("invalid argument")
	calls := 0
	g.call = func(context.Context, string, genai.TaskType) ([]float32, error) {
		calls++
		return nil, boom
	}

	_, err := g.EmbedDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	g, _ := newTestEmbedder(4)

	g.call = func(context.Context, string, genai.TaskType) ([]float32, error) {
		return []float32{1, 2}, nil
	}

	_, err := g.EmbedDocument(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4")
}

func TestEmbedTaskTypeSelection(t *testing.T) {
	g, _ := newTestEmbedder(1)

	var seen []genai.TaskType
	g.call = func(_ context.Context, _ string, task genai.TaskType) ([]float32, error) {
		seen = append(seen, task)
		return []float32{1}, nil
	}

	_, err := g.EmbedDocument(context.Background(), "doc")
	require.NoError(t, err)
	_, err = g.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []genai.TaskType{
		genai.TaskTypeRetrievalDocument,
		genai.TaskTypeRetrievalQuery,
	}, seen)
}
