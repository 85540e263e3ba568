package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/logger"
)

// bannerMessage greets callers of the root endpoint.
const bannerMessage = "Quarry API is running!"

// chatRequest is the POST /chat payload.
type chatRequest struct {
	Message string `json:"message"`
}

// handleChat streams one answer workflow run as server-sent events. Stage
// transitions arrive as named "stage" events; the terminal fragment is a
// default-type data message carrying the answer, or "Error: ..." when the
// workflow failed. Every stream gets exactly one terminal fragment.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	logger.Info("Chat request: %q", truncate(req.Message, 100))

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	terminal := false
	for ev := range s.ports.Answer.Ask(ctx, req.Message) {
		switch ev.Kind {
		case domain.EventStageStarted:
			workflowStages.WithLabelValues(string(ev.Stage)).Inc()
			fmt.Fprintf(w, "event: stage\ndata: %s\n\n", ev.Stage)
		case domain.EventWorkflowTerminated:
			writeData(w, ev.Final)
			terminal = true
		case domain.EventStageFailed:
			writeData(w, "Error: "+ev.Err.Error())
			terminal = true
		default:
			// stage_completed carries state snapshots the API does not
			// expose; nothing to send.
			continue
		}
		flusher.Flush()
	}

	// The orchestrator closes every stream with a terminal event. If the
	// client is still connected and none arrived, say so instead of
	// hanging up silently.
	if !terminal && ctx.Err() == nil {
		writeData(w, "Error: answer stream ended unexpectedly")
		flusher.Flush()
	}
}

// handleBanner reports service identity.
func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.ports.Settings.Get()
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"message":  bannerMessage,
		"provider": settings.LLM.Provider.String(),
		"version":  s.cfg.Version,
		"docs":     "https://github.com/quarry-labs/quarry#http-api",
	})
}

// handleHealth reports liveness for monitors and load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.ports.Settings.Get()
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"status":       "healthy",
		"llm_provider": settings.LLM.Provider.String(),
		"version":      s.cfg.Version,
	})
}

// handleConfig reports non-sensitive configuration. API keys never appear
// here.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.ports.Settings.Get()
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"llm_provider":    settings.LLM.Provider.String(),
		"llm_model":       settings.LLM.Model,
		"top_k":           settings.Workflow.TopK,
		"context_budget":  settings.Workflow.ContextBudget,
		"timeout_sec":     settings.Workflow.TimeoutSec,
		"embedding_model": settings.Embedding.Model,
	})
}

// writeData writes one default-type SSE message. Multi-line payloads become
// one data: line per line; the EventSource API reassembles them with
// newlines.
func writeData(w io.Writer, payload string) {
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	io.WriteString(w, "\n")
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Encoding response: %v", err)
	}
}

// truncate shortens s to at most n runes for log lines.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
