// Package chi exposes the retrieval, answer, export and health services over
// HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/domain/search/mode"
	"github.com/helios-eng/helios/internal/domain/search/result"
	"github.com/helios-eng/helios/internal/metrics"
	answeruc "github.com/helios-eng/helios/internal/usecase/answer"
	exportuc "github.com/helios-eng/helios/internal/usecase/export"
	healthuc "github.com/helios-eng/helios/internal/usecase/health"
	retrievaluc "github.com/helios-eng/helios/internal/usecase/retrieval"
)

const (
	maxTopK        = 50
	maxQuestionLen = 4096
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the HTTP API.
type Server struct {
	retrieval     *retrievaluc.Service
	answer        *answeruc.Service
	export        *exportuc.Service
	health        *healthuc.Service
	rebuild       func() error
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. rebuild may be nil, which disables
// the admin rebuild endpoint.
func NewServer(
	retrieval *retrievaluc.Service,
	answer *answeruc.Service,
	export *exportuc.Service,
	health *healthuc.Service,
	rebuild func() error,
	defaultTopK int,
	logger *zap.Logger,
) *Server {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	s := &Server{
		retrieval:   retrieval,
		answer:      answer,
		export:      export,
		health:      health,
		rebuild:     rebuild,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"),
		sentinelHandler(domain.ErrMaterialNotFound, http.StatusNotFound, "material_not_found"),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, "retrieval_unavailable"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrAnswerProviderError, http.StatusBadGateway, "answer_provider_error"),
	}
	return s
}

// Routes builds the chi router with the standard middleware chain.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware())
	r.Use(requestLogger(s.logger))
	r.Use(jsonRecoverer(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/search", s.handleSearch)
		r.Get("/compare", s.handleCompare)
		r.Post("/export", s.handleExport)
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if s.rebuild != nil {
		r.Post("/admin/rebuild", s.handleRebuild)
	}
	return r
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Question    string        `json:"question"`
	ChatHistory []chatMessage `json:"chat_history,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	Mode        string        `json:"mode,omitempty"`
}

type sourceItem struct {
	Material string  `json:"material"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

type queryResponse struct {
	Answer           string       `json:"answer"`
	Sources          []sourceItem `json:"sources"`
	Mode             string       `json:"mode"`
	DetectedMaterial string       `json:"detected_material,omitempty"`
}

// handleQuery runs retrieval and answers the question from the retrieved
// records. POST /api/v1/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Question is required")
		return
	}
	if len(req.Question) > maxQuestionLen {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("Question exceeds %d characters", maxQuestionLen))
		return
	}

	k, m, vmsg := s.topKAndMode(req.TopK, req.Mode)
	if vmsg != "" {
		writeError(w, http.StatusBadRequest, "validation_failed", vmsg)
		return
	}

	res, err := s.retrieveTimed(r, req.Question, k, m)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	history := make([]answeruc.Message, len(req.ChatHistory))
	for i, msg := range req.ChatHistory {
		history[i] = answeruc.Message{Role: msg.Role, Content: msg.Content}
	}

	text, err := s.answer.Answer(r.Context(), req.Question, history, res.Records)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := queryResponse{
		Answer:  text,
		Sources: sourcesFromResults(res.Records),
		Mode:    string(res.Mode),
	}
	if len(res.Records) > 0 {
		resp.DetectedMaterial = res.Records[0].Identity()
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

type searchResultItem struct {
	Material string  `json:"material"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

type searchResponse struct {
	Mode    string             `json:"mode"`
	Results []searchResultItem `json:"results"`
}

// handleSearch exposes raw retrieval without answer generation.
// POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query is required")
		return
	}

	k, m, vmsg := s.topKAndMode(req.TopK, req.Mode)
	if vmsg != "" {
		writeError(w, http.StatusBadRequest, "validation_failed", vmsg)
		return
	}

	res, err := s.retrieveTimed(r, req.Query, k, m)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(res.Records))
	for i, rec := range res.Records {
		items[i] = searchResultItem{
			Material: rec.Identity(),
			Category: rec.Category(),
			Score:    rec.Score(),
			Content:  rec.Content(),
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Mode: string(res.Mode), Results: items})
}

// handleCompare runs the same query in all three modes and reports the
// identity lists side by side. GET /api/v1/compare?query=...&top_k=5.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query parameter 'query' is required")
		return
	}

	k := s.defaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxTopK {
			writeError(w, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
			return
		}
		k = parsed
	}

	cmp, err := s.retrieval.Compare(r.Context(), query, k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       cmp.Query,
		"semantic":    cmp.Semantic,
		"keyword":     cmp.Keyword,
		"hybrid":      cmp.Hybrid,
		"fusion_only": cmp.FusionOnly,
	})
}

type exportRequest struct {
	Material string `json:"material"`
	Format   string `json:"format"`
}

// handleExport streams one material's datasheet as a download.
// POST /api/v1/export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Material == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Material is required")
		return
	}

	file, err := s.export.Export(req.Material, req.Format)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

// handleHealth reports service health. GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":  string(report.Status),
		"checks":  report.Checks,
		"records": report.Records,
	})
}

// handleRebuild reloads the catalog and swaps the index snapshot.
// POST /admin/rebuild.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := s.rebuild(); err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.handleDomainError(w, err)
		return
	}
	s.logger.Info("index rebuilt", zap.Duration("took", time.Since(start)))
	writeJSON(w, http.StatusOK, map[string]any{"status": "rebuilt"})
}

// retrieveTimed wraps Retrieve with the retrieval metrics.
func (s *Server) retrieveTimed(r *http.Request, query string, k int, m mode.Mode) (retrievaluc.Result, error) {
	start := time.Now()
	res, err := s.retrieval.Retrieve(r.Context(), query, k, m)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(string(m), "error").Inc()
		return retrievaluc.Result{}, err
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(string(res.Mode), "success").Inc()
	metrics.RetrievalDuration.WithLabelValues(string(res.Mode)).Observe(time.Since(start).Seconds())
	return res, nil
}

// topKAndMode applies defaults and bounds. Mode strings are not validated
// here; the retrieval service rejects unknown modes with ErrInvalidMode.
func (s *Server) topKAndMode(topK int, rawMode string) (int, mode.Mode, string) {
	k := s.defaultTopK
	if topK != 0 {
		if topK < 0 || topK > maxTopK {
			return 0, "", fmt.Sprintf("top_k must be between 1 and %d", maxTopK)
		}
		k = topK
	}

	m := mode.Hybrid
	if rawMode != "" {
		m = mode.Mode(rawMode)
	}
	return k, m, ""
}

func sourcesFromResults(records []result.Result) []sourceItem {
	items := make([]sourceItem, len(records))
	for i, rec := range records {
		items[i] = sourceItem{
			Material: rec.Identity(),
			Category: rec.Category(),
			Score:    rec.Score(),
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidMode,
		domain.ErrMaterialNotFound,
		domain.ErrUnsupportedFormat,
		domain.ErrRetrievalUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrAnswerProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
