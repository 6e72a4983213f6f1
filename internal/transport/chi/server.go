// Package chi is the HTTP transport for the mapping service.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dynamap/internal/domain"
	logpkg "github.com/kailas-cloud/dynamap/internal/logger"
	mappinguc "github.com/kailas-cloud/dynamap/internal/usecase/mapping"
)

// maxBodyBytes caps request bodies; mapping definitions and documents are
// small by nature.
const maxBodyBytes = 4 << 20

// Pinger checks storage connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// PutMappingResponse acknowledges a mapping update or reports a dry run.
type PutMappingResponse struct {
	Acknowledged bool     `json:"acknowledged"`
	DryRun       bool     `json:"dry_run,omitempty"`
	Valid        bool     `json:"valid,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes the mapping service over HTTP.
type Server struct {
	mappings      *mappinguc.Service
	pinger        Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(mappings *mappinguc.Service, pinger Pinger, logger *zap.Logger) *Server {
	s := &Server{
		mappings: mappings,
		pinger:   pinger,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		mergeConflictHandler,
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, "index_not_found"),
		sentinelHandler(domain.ErrIndexExists, http.StatusConflict, "index_already_exists"),
		sentinelHandler(domain.ErrInvalidMapping, http.StatusBadRequest, "invalid_mapping"),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, "invalid_document"),
	}
	return s
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.Health)
	r.Get("/indices", s.ListIndices)
	r.Get("/indices/{index}/mapping", s.GetMapping)
	r.Put("/indices/{index}/mapping", s.PutMapping)
	r.Delete("/indices/{index}", s.DeleteIndex)
	r.Post("/indices/{index}/documents", s.IndexDocument)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListIndices handles GET /indices.
func (s *Server) ListIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := s.mappings.ListIndices(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if indices == nil {
		indices = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": indices})
}

// GetMapping handles GET /indices/{index}/mapping.
func (s *Server) GetMapping(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	data, err := s.mappings.GetMapping(r.Context(), index)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutMapping handles PUT /indices/{index}/mapping. With ?dry_run=true the
// merge is simulated: conflicts are reported and nothing is committed.
func (s *Server) PutMapping(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	dryRun := r.URL.Query().Get("dry_run") == "true"

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	conflicts, err := s.mappings.PutMapping(r.Context(), index, body, dryRun)
	if err != nil {
		if dryRun && errors.Is(err, domain.ErrMergeConflict) {
			// a dry run reports conflicts instead of failing
			writeJSON(w, http.StatusOK, PutMappingResponse{DryRun: true, Conflicts: conflicts})
			return
		}
		s.handleDomainError(w, r, err)
		return
	}
	if dryRun {
		writeJSON(w, http.StatusOK, PutMappingResponse{DryRun: true, Valid: true})
		return
	}
	writeJSON(w, http.StatusOK, PutMappingResponse{Acknowledged: true})
}

// DeleteIndex handles DELETE /indices/{index}.
func (s *Server) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	if err := s.mappings.DeleteIndex(r.Context(), index); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

// IndexDocument handles POST /indices/{index}/documents: the document is
// parsed against the index mapping, growing it for unseen fields.
func (s *Server) IndexDocument(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	if err := s.mappings.ParseDocument(r.Context(), index, body); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// handleDomainError walks the error handler chain, falling back to a 500
// logged with the request-scoped logger.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	logpkg.FromContext(r.Context()).Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// sentinelHandler maps one sentinel error to a status code.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

// mergeConflictHandler reports the full conflict list of a rejected
// mapping update.
func mergeConflictHandler(w http.ResponseWriter, err error) bool {
	var mce *domain.MergeConflictError
	if !errors.As(err, &mce) {
		return false
	}
	writeJSON(w, http.StatusConflict, ErrorResponse{
		Code:      "merge_conflict",
		Message:   "mapping update would conflict with the existing mapping",
		Conflicts: mce.Conflicts,
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
