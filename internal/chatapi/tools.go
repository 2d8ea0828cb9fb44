package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore/mention"
	"github.com/inspirepan/chatcore/registry"
	"github.com/inspirepan/chatcore/tools"
)

// MarketplaceTool is a catalogue entry.
type MarketplaceTool struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Icon        string     `json:"icon,omitempty"`
	Enabled     bool       `json:"enabled"`
	InstalledAt *time.Time `json:"installedAt,omitempty"`
}

func marketplaceEntry(def registry.Definition) MarketplaceTool {
	return MarketplaceTool{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Icon:        def.Icon,
		Enabled:     true,
	}
}

func (s *Server) availableTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.SerializeAll())
}

// searchTools serves mention suggestions. The query is q, or the partial
// mention under cursor in text.
func (s *Server) searchTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if text := q.Get("text"); query == "" && text != "" {
		cursor := len(text)
		if c := q.Get("cursor"); c != "" {
			n, err := strconv.Atoi(c)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid query parameters", "cursor must be an integer")
				return
			}
			cursor = n
		}
		active, ok := mention.ActiveQuery(text, cursor)
		if !ok {
			writeJSON(w, http.StatusOK, []registry.Serialized{})
			return
		}
		query = active
	}
	writeJSON(w, http.StatusOK, registry.SerializeEach(s.reg.Search(query)))
}

type executeRequest struct {
	ToolID string         `json:"toolId"`
	Params map[string]any `json:"params"`
}

type executeResult struct {
	out any
	err error
}

func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	var body executeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if body.ToolID == "" {
		writeError(w, http.StatusBadRequest, "Tool ID is required", nil)
		return
	}
	if _, ok := s.reg.Get(body.ToolID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", body.ToolID), nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.toolTimeout)
	defer cancel()
	done := make(chan executeResult, 1)
	go func() {
		out, err := s.reg.Execute(ctx, body.ToolID, body.Params)
		done <- executeResult{out: out, err: err}
	}()

	var res executeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = executeResult{err: ctx.Err()}
	}
	switch {
	case res.err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"result": res.out, "success": true})
	case errors.Is(res.err, context.DeadlineExceeded):
		log.Error(r.Context(), res.err, log.KV{K: "tool", V: body.ToolID})
		writeError(w, http.StatusGatewayTimeout, "Tool execution timed out", res.err.Error())
	default:
		log.Error(r.Context(), res.err, log.KV{K: "tool", V: body.ToolID})
		writeError(w, http.StatusInternalServerError, "Tool execution failed", registry.FailureMessage(res.err))
	}
}

func (s *Server) marketplace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	if len(category) > 64 || len(search) > 256 {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", "category or search too long")
		return
	}

	out := []MarketplaceTool{}
	for _, def := range s.reg.List() {
		if category != "" && def.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(def.Name), search) &&
			!strings.Contains(strings.ToLower(def.Description), search) {
			continue
		}
		out = append(out, marketplaceEntry(def))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

type installRequest struct {
	ToolID string `json:"toolId"`
	UserID string `json:"userId,omitempty"`
}

func (s *Server) installTool(w http.ResponseWriter, r *http.Request) {
	var body installRequest
	if err := decodeBody(r, &body); err != nil || body.ToolID == "" {
		details := "toolId is required"
		if err != nil {
			details = err.Error()
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", details)
		return
	}
	if _, ok := s.reg.Get(body.ToolID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", body.ToolID), nil)
		return
	}
	if s.store != nil {
		if _, err := s.store.Install(r.Context(), body.UserID, body.ToolID); err != nil {
			log.Error(r.Context(), err, log.KV{K: "tool", V: body.ToolID})
			writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
			return
		}
	}
	log.Info(r.Context(), log.KV{K: "msg", V: "tool installed"}, log.KV{K: "tool", V: body.ToolID}, log.KV{K: "user", V: body.UserID})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"toolId":  body.ToolID,
		"message": fmt.Sprintf("Tool %s installed successfully", body.ToolID),
	})
}

// installedTools lists the tools of the user-id header. A user without
// installs sees the weather tool.
func (s *Server) installedTools(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("user-id")
	out := []MarketplaceTool{}
	if s.store != nil {
		installs, err := s.store.List(r.Context(), userID)
		if err != nil {
			log.Error(r.Context(), err, log.KV{K: "user", V: userID})
			writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
			return
		}
		for _, in := range installs {
			def, ok := s.reg.Get(in.ToolID)
			if !ok {
				continue
			}
			entry := marketplaceEntry(def)
			at := in.InstalledAt
			entry.InstalledAt = &at
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		if def, ok := s.reg.Get(tools.WeatherID); ok {
			entry := marketplaceEntry(def)
			at := s.now().UTC()
			entry.InstalledAt = &at
			out = append(out, entry)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) uninstallTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolId")
	if s.store == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not installed", toolID), nil)
		return
	}
	removed, err := s.store.Uninstall(r.Context(), r.Header.Get("user-id"), toolID)
	if err != nil {
		log.Error(r.Context(), err, log.KV{K: "tool", V: toolID})
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not installed", toolID), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "toolId": toolID})
}
