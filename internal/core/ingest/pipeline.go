package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/logger"
	"github.com/markdave123-py/corpora/internal/models"
)

// Job is one document to (re)index.
type Job struct {
	DocID       string
	Shared      bool
	StoragePath string
	MimeType    string
}

// Store is the slice of persistence the pipeline needs.
type Store interface {
	PersistChunks(ctx context.Context, docID string, shared bool, chunks []models.DocumentChunk) error
}

// BlobStore fetches the original file bytes.
type BlobStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

var ErrQueueFull = errors.New("ingest queue is full")

// Ingestor runs the download -> extract -> chunk -> embed -> persist pipeline
// on a small worker pool. Embedding calls are paced through a shared rate
// limiter, and concurrent jobs for the same document are coalesced so a
// reprocess racing an upload does not double-embed.
type Ingestor struct {
	store    Store
	blobs    BlobStore
	embedder core.EmbeddingProvider

	chunkSize    int
	chunkOverlap int

	limiter *rate.Limiter
	group   singleflight.Group
	jobs    chan Job
	log     *logrus.Entry
}

func NewIngestor(store Store, blobs BlobStore, embedder core.EmbeddingProvider, chunkSize, chunkOverlap int, pace time.Duration, queueSize int) *Ingestor {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Ingestor{
		store:        store,
		blobs:        blobs,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		limiter:      rate.NewLimiter(rate.Every(pace), 1),
		jobs:         make(chan Job, queueSize),
		log:          logger.New("ingest"),
	}
}

// Start blocks, draining the queue with the given number of workers until
// ctx is cancelled.
func (in *Ingestor) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-in.jobs:
					if err := in.ProcessOne(ctx, job); err != nil {
						// Dead-letter: the failure is recorded here and the
						// document keeps chunk_count = 0 until reprocessed.
						in.log.WithFields(logrus.Fields{
							"doc_id": job.DocID,
							"shared": job.Shared,
							"path":   job.StoragePath,
						}).WithError(err).Error("ingestion failed")
					}
				}
			}
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
}

// Enqueue hands a job to the worker pool without blocking the caller.
func (in *Ingestor) Enqueue(job Job) error {
	select {
	case in.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// ProcessOne runs one job synchronously. Jobs for the same document are
// coalesced: a second caller waits for the in-flight run and shares its
// result instead of starting another.
func (in *Ingestor) ProcessOne(ctx context.Context, job Job) error {
	key := "doc:" + job.DocID
	if job.Shared {
		key = "shared:" + job.DocID
	}
	_, err, _ := in.group.Do(key, func() (any, error) {
		return nil, in.run(ctx, job)
	})
	return err
}

func (in *Ingestor) run(ctx context.Context, job Job) error {
	if in.embedder == nil {
		return errors.New("no embedding provider configured")
	}

	data, err := in.blobs.DownloadFile(ctx, job.StoragePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", job.StoragePath, err)
	}

	text := Extract(data, job.MimeType)

	pieces, err := SplitWords(text, in.chunkSize, in.chunkOverlap)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		in.log.WithField("doc_id", job.DocID).Info("document has no extractable text")
		return nil
	}

	chunks := make([]models.DocumentChunk, 0, len(pieces))
	failed := 0
	for i, content := range pieces {
		if err := in.limiter.Wait(ctx); err != nil {
			return err
		}
		ch := models.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: job.DocID,
			ChunkIndex: i,
			Content:    content,
		}
		vec, err := in.embedder.EmbedDocument(ctx, content)
		if err != nil {
			// The chunk is still stored for audit/reprocess; it just never
			// matches a search until re-embedded.
			in.log.WithFields(logrus.Fields{
				"doc_id":      job.DocID,
				"chunk_index": i,
			}).WithError(err).Warn("chunk embedding failed")
			ch.EmbedStatus = models.EmbedFailed
			failed++
		} else {
			ch.Embedding = vec
			ch.EmbedStatus = models.EmbedEmbedded
		}
		chunks = append(chunks, ch)
	}

	if err := in.store.PersistChunks(ctx, job.DocID, job.Shared, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	in.log.WithFields(logrus.Fields{
		"doc_id": job.DocID,
		"shared": job.Shared,
		"chunks": len(chunks),
		"failed": failed,
	}).Info("document indexed")
	return nil
}
