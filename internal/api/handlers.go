package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phrazzld/triage/internal/api/shared"
	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
	"github.com/phrazzld/triage/internal/orchestrator"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/router"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the handlers use.
type Orchestrator interface {
	ProcessTasks(ctx context.Context) ([]domain.Task, error)
	ActionPrompt(ctx context.Context, id int64) (*domain.Task, string, error)
	ApplyDecision(ctx context.Context, id int64, decision domain.Decision) (lifecycle.Result, error)
	ProcessInput(ctx context.Context, input string, c generation.Context) (router.Answer, error)
}

var _ Orchestrator = (*orchestrator.Orchestrator)(nil)

// Handler serves the triage HTTP endpoints.
type Handler struct {
	orch   Orchestrator
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(orch Orchestrator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{orch: orch, logger: log.With(slog.String("component", "api"))}
}

// collector captures presented sections for a single request.
type collector struct {
	mu       sync.Mutex
	sections []SummaryResponse
}

func (c *collector) Present(_ context.Context, heading, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections = append(c.sections, SummaryResponse{Title: heading, Text: body})
}

// ProcessInput handles POST /api/input requests
func (h *Handler) ProcessInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	answer, err := h.orch.ProcessInput(r.Context(), req.Input, req.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, InputResponse{
		Response: answer.Text,
		Model:    answer.Model,
		FellBack: answer.FellBack,
	})
}

// Backlog handles GET /api/tasks/backlog requests
func (h *Handler) Backlog(w http.ResponseWriter, r *http.Request) {
	c := &collector{}
	ctx := orchestrator.WithPresenter(r.Context(), c)

	tasks, err := h.orch.ProcessTasks(ctx)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := BacklogResponse{
		Tasks:     make([]TaskResponse, 0, len(tasks)),
		Summaries: make([]SummaryResponse, 0, len(c.sections)),
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}
	resp.Summaries = append(resp.Summaries, c.sections...)

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ActionPrompt handles GET /api/tasks/{id}/action requests
func (h *Handler) ActionPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	ctx := orchestrator.WithPresenter(r.Context(), &collector{})
	task, prompt, err := h.orch.ActionPrompt(ctx, id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ActionResponse{
		Task:   taskToResponse(*task),
		Prompt: prompt,
	})
}

// Decide handles POST /api/tasks/{id}/decision requests. Exactly one
// decision is applied per request.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req DecisionRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	req.Decision = strings.ToLower(strings.TrimSpace(req.Decision))
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	ctx := orchestrator.WithPresenter(r.Context(), &collector{})
	res, err := h.orch.ApplyDecision(ctx, id, decision)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("decision applied",
		slog.Int64("task_id", id),
		slog.String("decision", string(decision)))
	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(id, res))
}

// Health handles GET /health requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", slog.String("error", err.Error()))
	}
}
