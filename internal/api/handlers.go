package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/intent"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/orchestrator"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	maxBatchQueries    = 50
)

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	batch        *orchestrator.BatchOptimizer
	parser       *intent.Parser
	logger       *zap.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, batch *orchestrator.BatchOptimizer, parser *intent.Parser, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		batch:        batch,
		parser:       parser,
		logger:       logger,
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseSearchRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	req.RequestID = requestID

	resp, err := h.orchestrator.Search(ctx, req)
	if err != nil {
		h.logger.Error("search failed",
			zap.String("request_id", requestID),
			zap.String("query", req.Query),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "search_error", "Search service temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// BatchSearch accepts raw queries, pre-parsed intents, or a mix. Raw
// queries go through the same parser as single search before grouping.
func (h *Handler) BatchSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)
	start := time.Now()

	var req models.BatchSearchRequest
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Queries) == 0 && len(req.Intents) == 0 {
		h.writeError(w, http.StatusBadRequest, "missing_queries", "At least one query or intent is required")
		return
	}
	if len(req.Queries)+len(req.Intents) > maxBatchQueries {
		h.writeError(w, http.StatusBadRequest, "batch_too_large", "Batch exceeds the maximum of 50 queries")
		return
	}

	intents := make([]*models.SearchIntent, 0, len(req.Queries)+len(req.Intents))
	for _, q := range req.Queries {
		si, _ := h.parser.Parse(ctx, q)
		intents = append(intents, si)
	}
	for _, si := range req.Intents {
		if si == nil {
			continue
		}
		intents = append(intents, si)
	}

	results, err := h.batch.BatchSearch(ctx, intents, req.LimitPerQuery)
	if err != nil {
		h.logger.Error("batch search failed",
			zap.String("request_id", requestID),
			zap.Int("intents", len(intents)),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "search_error", "Search service temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, &models.BatchSearchResponse{
		Results: results,
		TookMs:  time.Since(start).Milliseconds(),
	})
}

// ParseIntent exposes the parser on its own so callers can inspect how a
// query would be interpreted without running the search.
func (h *Handler) ParseIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}

	si, source := h.parser.Parse(ctx, query)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intent": si,
		"source": string(source),
	})
}

func (h *Handler) parseSearchRequest(r *http.Request) (*models.SearchRequest, error) {
	if r.Method == http.MethodPost {
		var req models.SearchRequest
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	// GET request
	req := &models.SearchRequest{
		Query: r.URL.Query().Get("q"),
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err == nil && limit > 0 {
			req.Limit = limit
		}
	}

	if s := r.URL.Query().Get("skip"); s != "" {
		skip, err := strconv.Atoi(s)
		if err == nil && skip >= 0 {
			req.Skip = skip
		}
	}

	return req, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
