package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	db "github.com/markdave123-py/corpora/internal/core/database"
	"github.com/markdave123-py/corpora/internal/core/ingest"
	"github.com/markdave123-py/corpora/internal/core/llm"
	objectclient "github.com/markdave123-py/corpora/internal/core/object-client"
	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/logger"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     *ingest.Ingestor
	Server       *Server

	cfg      *config.Config
	log      *logrus.Entry
	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New("app")

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database ready")

	objClient, err := objectclient.NewS3Client(initCtx, cfg)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	log.Info("object store ready")

	a := &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		cfg:          cfg,
		log:          log,
	}

	// Without an API key the service still manages documents; indexing and
	// chat report themselves unavailable.
	var embProvider core.EmbeddingProvider
	var llmProvider core.LLMProvider
	if cfg.AIAPIKey != "" {
		a.embedder, err = llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.llm, err = llm.NewGeminiLLM(initCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		embProvider = a.embedder
		llmProvider = a.llm
	} else {
		log.Warn("GEMINI_API_KEY not set, indexing and chat disabled")
	}

	a.Ingestor = ingest.NewIngestor(dbClient, objClient, embProvider,
		cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedPace, cfg.IngestQueue)

	var queryEmbedder retrieval.QueryEmbedder
	if a.embedder != nil {
		queryEmbedder = a.embedder
	}
	retriever := retrieval.NewRetriever(dbClient, queryEmbedder, 5)

	a.Server = NewServer(cfg, dbClient, objClient, a.Ingestor, retriever, llmProvider)
	return a, nil
}

func (a *App) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
