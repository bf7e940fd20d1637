package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/pkg/schema"
)

// handleCreateGraph validates and stores a new workflow definition.
func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		Definition  schema.GraphDefinition `json:"graph_definition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	wf, result, err := s.deps.Launcher.CreateWorkflow(ctx, body.Name, body.Description, body.Definition)
	if err != nil {
		if result != nil && !result.Valid() {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "graph definition is invalid",
				"issues": result.Errors(),
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"workflow_id": wf.ID,
		"name":        wf.Name,
		"warnings":    result.Warnings(),
	})
}

// handleListGraphs lists stored workflow definitions.
func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkflowFilter{
		Name:   r.URL.Query().Get("name"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	workflows, err := s.deps.Store.ListWorkflows(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type summary struct {
		ID          string    `json:"workflow_id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		NodeCount   int       `json:"node_count"`
		EdgeCount   int       `json:"edge_count"`
		CreatedAt   time.Time `json:"created_at"`
	}
	out := make([]summary, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, summary{
			ID:          wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			NodeCount:   len(wf.Definition.Nodes),
			EdgeCount:   len(wf.Definition.Edges),
			CreatedAt:   wf.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

// handleGetGraph returns a full workflow definition.
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	wf, err := s.deps.Store.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// handleRunGraph launches a run and returns immediately with the run ID.
func (s *Server) handleRunGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		WorkflowID   string         `json:"workflow_id"`
		InitialState map[string]any `json:"initial_state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	run, err := s.deps.Launcher.StartRun(ctx, body.WorkflowID, body.InitialState)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      run.ID,
		"workflow_id": run.WorkflowID,
		"status":      run.Status,
	})
}

// handleRunState returns the current state of a run, including logs and
// the state snapshot history.
func (s *Server) handleRunState(w http.ResponseWriter, r *http.Request) {
	run, snaps, err := s.deps.Launcher.RunStatus(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":       run,
		"snapshots": snaps,
	})
}

// handleListRuns lists runs, optionally filtered by workflow and status.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		WorkflowID: r.URL.Query().Get("workflow_id"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := schema.RunStatus(raw)
		filter.Status = &status
	}

	runs, err := s.deps.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleCreateJob registers a cron schedule for a stored workflow.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		WorkflowID     string         `json:"workflow_id"`
		CronExpression string         `json:"cron_expression"`
		InitialState   map[string]any `json:"initial_state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.WorkflowID == "" || body.CronExpression == "" {
		writeError(w, http.StatusBadRequest, "workflow_id and cron_expression are required")
		return
	}
	// Reject schedules for workflows that do not exist.
	if _, err := s.deps.Store.GetWorkflow(ctx, body.WorkflowID); err != nil {
		writeDomainError(w, err)
		return
	}

	job := &store.ScheduledJob{
		ID:             uuid.New().String(),
		WorkflowID:     body.WorkflowID,
		CronExpression: body.CronExpression,
		InitialState:   body.InitialState,
		Enabled:        true,
	}
	if err := s.deps.Store.CreateScheduledJob(ctx, job); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": job.ID})
}

// handleListJobs lists scheduled jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.ScheduledJobFilter{
		WorkflowID: r.URL.Query().Get("workflow_id"),
	}
	jobs, err := s.deps.Store.ListScheduledJobs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleUpdateJob enables or disables a scheduled job.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	id := r.PathValue("id")
	if err := s.deps.Store.UpdateScheduledJob(r.Context(), id, store.ScheduledJobUpdate{Enabled: body.Enabled}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "enabled": *body.Enabled})
}

// handleDeleteJob removes a scheduled job.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Store.DeleteScheduledJob(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": id})
}
