package task

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/pkg/observability"
	"github.com/equityscope/equityscope/pkg/version"
)

// JSON-RPC 2.0 error codes. -32001 is the A2A task-not-found extension.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeTaskNotFound   = -32001
)

const agentName = "equityscope-research"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

// Server is the A2A-style HTTP surface over the task manager: a
// JSON-RPC endpoint, the agent card, health, and Prometheus metrics.
type Server struct {
	manager *Manager
	logger  *slog.Logger
	metrics http.Handler
	red     *observability.REDMetrics
}

// NewServer builds the task HTTP server. metricsHandler and red are
// optional.
func NewServer(manager *Manager, logger *slog.Logger, metricsHandler http.Handler, red *observability.REDMetrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{manager: manager, logger: logger, metrics: metricsHandler, red: red}
}

// Routes builds the HTTP router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleRPC)
	r.Get("/", s.handleRoot)
	r.Get("/.well-known/agent.json", s.handleAgentCard)
	r.Get("/health", s.handleHealth)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req rpcRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.record(r, "parse", "error", start)
		s.reply(w, rpcFailure(nil, codeParseError, "Parse error"))

		return
	}

	if req.JSONRPC != "2.0" {
		s.record(r, "invalid", "error", start)
		s.reply(w, rpcFailure(req.ID, codeInvalidRequest, "Invalid Request: must be JSON-RPC 2.0"))

		return
	}

	var resp rpcResponse

	switch req.Method {
	case "message/send":
		resp = s.handleMessageSend(req)
	case "tasks/get":
		resp = s.handleTasksGet(req)
	case "tasks/cancel":
		resp = s.handleTasksCancel(req)
	default:
		resp = rpcFailure(req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}

	status := "ok"
	if resp.Error != nil {
		status = "error"
	}

	s.record(r, req.Method, status, start)
	s.reply(w, resp)
}

type messageSendParams struct {
	Message struct {
		Parts []struct {
			Kind string `json:"kind"`
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"message"`
}

func (s *Server) handleMessageSend(req rpcRequest) rpcResponse {
	var params messageSendParams

	err := json.Unmarshal(req.Params, &params)
	if err != nil {
		return rpcFailure(req.ID, codeInvalidParams, "Invalid params: "+err.Error())
	}

	text := ""

	for _, part := range params.Message.Parts {
		if part.Kind == "text" || part.Type == "text" {
			text = part.Text
		}
	}

	task, err := s.manager.Submit(text)
	if err != nil {
		return rpcFailure(req.ID, codeInvalidParams, "Invalid params: could not parse company/ticker")
	}

	return rpcSuccess(req.ID, map[string]any{
		"task": map[string]any{
			"id":     task.ID,
			"status": task.Status,
		},
	})
}

type taskIDParams struct {
	TaskID string `json:"taskId"`
	ID     string `json:"id"`
}

func (p taskIDParams) value() string {
	if p.TaskID != "" {
		return p.TaskID
	}

	return p.ID
}

func (s *Server) handleTasksGet(req rpcRequest) rpcResponse {
	var params taskIDParams

	err := json.Unmarshal(req.Params, &params)
	if err != nil || params.value() == "" {
		return rpcFailure(req.ID, codeInvalidParams, "Invalid params: taskId required")
	}

	task, err := s.manager.Get(params.value())
	if err != nil {
		return rpcFailure(req.ID, codeTaskNotFound, "Task not found: "+params.value())
	}

	return rpcSuccess(req.ID, map[string]any{"task": taskView(task)})
}

func (s *Server) handleTasksCancel(req rpcRequest) rpcResponse {
	var params taskIDParams

	err := json.Unmarshal(req.Params, &params)
	if err != nil || params.value() == "" {
		return rpcFailure(req.ID, codeInvalidParams, "Invalid params: taskId required")
	}

	task, err := s.manager.Cancel(params.value())
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return rpcFailure(req.ID, codeTaskNotFound, "Task not found: "+params.value())
		}

		return rpcFailure(req.ID, codeInvalidParams, err.Error())
	}

	return rpcSuccess(req.ID, map[string]any{
		"task": map[string]any{
			"id":     task.ID,
			"status": task.Status,
		},
	})
}

// taskView shapes a task for tasks/get: partial metrics surface while
// WORKING and on COMPLETED so late events are never lost; artifacts
// only on COMPLETED; the error object only on FAILED.
func taskView(task model.Task) map[string]any {
	view := map[string]any{
		"id":        task.ID,
		"status":    task.Status,
		"createdAt": task.CreatedAt,
		"updatedAt": task.UpdatedAt,
	}

	streaming := task.Status == model.StatusWorking || task.Status == model.StatusCompleted
	if streaming && len(task.PartialMetrics) > 0 {
		view["partial_metrics"] = task.PartialMetrics
	}

	if task.Status == model.StatusCompleted && len(task.Artifacts) > 0 {
		view["artifacts"] = task.Artifacts
	}

	if task.Status == model.StatusFailed && task.Error != "" {
		view["error"] = map[string]any{"message": task.Error}
	}

	return view
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        agentName,
		"version":     version.Version,
		"description": "Financial research service aggregating six data baskets over MCP worker subprocesses for SWOT analysis.",
		"capabilities": map[string]any{
			"streaming":              false,
			"pushNotifications":      false,
			"stateTransitionHistory": false,
			"partialResults":         true,
		},
		"authentication":     map[string]any{"schemes": []string{}},
		"defaultInputModes":  []string{"text"},
		"defaultOutputModes": []string{"data"},
		"skills": []map[string]any{
			{
				"id":          "research-company",
				"name":        "Company Research",
				"description": "Fetch comprehensive financial data for a company from SEC EDGAR, Yahoo Finance, FRED, news search, and sentiment sources",
				"inputModes":  []string{"text"},
				"outputModes": []string{"data"},
				"examples": []map[string]string{
					{"input": "Research Tesla", "output": "Aggregated financial data for TSLA"},
					{"input": "Research AAPL Apple Inc", "output": "Financial data for Apple"},
				},
			},
		},
		"dataSources": []string{
			"SEC EDGAR (financials, filings)",
			"Yahoo Finance (valuation, volatility)",
			"FRED (macro indicators)",
			"Tavily + New York Times (news search)",
			"Finnhub (sentiment)",
			"Reddit (sentiment)",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"agent":           agentName,
		"version":         version.Version,
		"tasks_in_memory": s.manager.Count(),
		"capabilities":    []string{"partial_metrics_streaming"},
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    agentName,
		"version": version.Version,
		"endpoints": map[string]string{
			"POST /":                      "JSON-RPC endpoint (message/send, tasks/get, tasks/cancel)",
			"GET /.well-known/agent.json": "Agent card",
			"GET /health":                 "Health check",
			"GET /metrics":                "Prometheus metrics",
		},
	})
}

func (s *Server) record(r *http.Request, method, status string, start time.Time) {
	if s.red == nil {
		return
	}

	s.red.RecordRequest(r.Context(), "rpc."+method, status, time.Since(start))
}

func (s *Server) reply(w http.ResponseWriter, resp rpcResponse) {
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

func rpcSuccess(id any, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFailure(id any, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}
