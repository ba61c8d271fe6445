// Package api exposes the workflow graph service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcnem/agentgraph/internal/logging"
	"github.com/arcnem/agentgraph/internal/transact"
	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

// OrgHeader carries the caller's organization. The gateway in front of this
// service authenticates the caller and injects it.
const OrgHeader = "X-Org-ID"

// Server wires the HTTP surface to the transactor and the store.
type Server struct {
	transactor *transact.Transactor
	store      ports.GraphStore
	catalogs   ports.CatalogSource
	logger     *slog.Logger
}

// NewHandler builds the service router.
func NewHandler(transactor *transact.Transactor, store ports.GraphStore, catalogs ports.CatalogSource, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{transactor: transactor, store: store, catalogs: catalogs, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireOrg)
		r.Get("/catalog", s.getCatalog)
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.listWorkflows)
			r.Post("/", s.createWorkflow)
			r.Get("/{workflowID}", s.getWorkflow)
			r.Put("/{workflowID}", s.replaceWorkflow)
		})
		r.Post("/devices/{deviceID}/workflow", s.assignDeviceWorkflow)
	})
	return r
}

type ctxKey int

const orgKey ctxKey = 0

func (s *Server) requireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := r.Header.Get(OrgHeader)
		if org == "" {
			writeError(w, http.StatusBadRequest, "Missing "+OrgHeader+" header.", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(withOrg(r.Context(), org)))
	})
}

// workflowResponse is the editor-facing shape of a stored graph.
type workflowResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	EntryNode   string            `json:"entryNode"`
	Nodes       []graph.NodeInput `json:"nodes"`
	Edges       []graph.Edge      `json:"edges"`
}

func toResponse(sg ports.StoredGraph) workflowResponse {
	in := transact.DraftInput(sg)
	resp := workflowResponse{
		ID:          sg.Meta.ID,
		Name:        sg.Meta.Name,
		Description: sg.Meta.Description,
		EntryNode:   in.EntryNode,
		Nodes:       in.Nodes,
		Edges:       in.Edges,
	}
	if resp.Nodes == nil {
		resp.Nodes = []graph.NodeInput{}
	}
	if resp.Edges == nil {
		resp.Edges = []graph.Edge{}
	}
	return resp
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var draft transact.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", "")
		return
	}

	graphID, err := s.transactor.CreateGraph(r.Context(), orgFrom(r.Context()), draft)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": graphID})
}

func (s *Server) replaceWorkflow(w http.ResponseWriter, r *http.Request) {
	var draft transact.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", "")
		return
	}

	graphID := chi.URLParam(r, "workflowID")
	if err := s.transactor.ReplaceGraph(r.Context(), orgFrom(r.Context()), graphID, draft); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": graphID})
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	sg, err := s.store.GetGraph(r.Context(), orgFrom(r.Context()), chi.URLParam(r, "workflowID"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sg))
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.store.ListGraphs(r.Context(), orgFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	out := make([]workflowResponse, 0, len(graphs))
	for _, sg := range graphs {
		out = append(out, toResponse(sg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) assignDeviceWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body.", "")
		return
	}

	err := s.transactor.AssignDeviceGraph(r.Context(), orgFrom(r.Context()), chi.URLParam(r, "deviceID"), body.WorkflowID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	cats, err := ports.LoadCatalogs(r.Context(), s.catalogs)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	models := cats.Models
	if models == nil {
		models = []graph.Model{}
	}
	tools := cats.Tools
	if tools == nil {
		tools = []graph.Tool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models, "tools": tools})
}

// writeFailure maps service errors onto status codes: validation failures
// are client faults with the rule's message verbatim, missing rows are 404,
// the rest is internal.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *graph.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Msg, verr.Entity)
	case errors.Is(err, ports.ErrGraphNotFound), errors.Is(err, ports.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error.", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, entity string) {
	body := map[string]string{"error": msg}
	if entity != "" {
		body["entity"] = entity
	}
	writeJSON(w, status, body)
}
