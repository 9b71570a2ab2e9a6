package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	middleware "github.com/markdave123-py/corpora/internal/api/middlewares"
	"github.com/markdave123-py/corpora/internal/config"
	"github.com/markdave123-py/corpora/internal/core"
	"github.com/markdave123-py/corpora/internal/core/retrieval"
	"github.com/markdave123-py/corpora/internal/logger"
	"github.com/markdave123-py/corpora/internal/models"
)

type ChatHandler struct {
	dbclient  core.DbClient
	retriever *retrieval.Retriever
	llm       core.LLMProvider
	cfg       *config.Config
	log       *logrus.Entry
}

func NewChatHandler(dbclient core.DbClient, retriever *retrieval.Retriever, llm core.LLMProvider, cfg *config.Config) *ChatHandler {
	return &ChatHandler{
		dbclient:  dbclient,
		retriever: retriever,
		llm:       llm,
		cfg:       cfg,
		log:       logger.New("chat"),
	}
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Answer  string            `json:"answer"`
	Sources []models.Citation `json:"sources"`
}

// Query answers a question grounded in the caller's retrievable documents.
// When nothing relevant is found the model still answers, with no sources.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())

	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	dept := ""
	if user, err := h.dbclient.GetUserByEmail(r.Context(), email); err == nil && user != nil {
		dept = user.Department
	}

	scope := retrieval.ResolveScope(email, h.cfg.IsAdmin(email), dept)
	docContext, citations := h.retriever.Retrieve(r.Context(), req.Query, scope)

	answer, err := h.llm.Generate(r.Context(), retrieval.BuildSystemPrompt(docContext), req.Query)
	if err != nil {
		h.log.WithError(err).Error("generation failed")
		writeError(w, http.StatusBadGateway, "could not generate an answer")
		return
	}

	if citations == nil {
		citations = []models.Citation{}
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Sources: citations})
}
