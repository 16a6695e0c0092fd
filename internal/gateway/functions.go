package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/functions"
	"github.com/flemzord/tabllm/internal/security"
)

type callRequest struct {
	Args []json.RawMessage `json:"args"`
}

type callResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
}

type paramView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type signatureView struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []paramView `json:"params"`
}

func (s *server) handleListFunctions(w http.ResponseWriter, _ *http.Request) {
	sigs := functions.Signatures()
	out := make([]signatureView, 0, len(sigs))
	for _, sig := range sigs {
		v := signatureView{Name: sig.Name, Description: sig.Description}
		for _, p := range sig.Params {
			v.Params = append(v.Params, paramView(p))
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"functions": out})
}

// handleCall runs POST /v1/functions/{name} with body {"args": [...]}.
// Each call costs one unit of the call budget and one row unit per input
// row.
func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	client := clientFrom(r)

	var req callRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if s.Limiter != nil {
		err := s.Limiter.Allow(client, security.KindCall)
		if err == nil {
			err = s.Limiter.AllowN(client, security.KindRow, rowCount(name, req.Args))
		}
		if err != nil {
			s.Audit.Log(security.AuditEvent{
				Type:     security.EventRateLimit,
				Client:   client,
				Function: name,
				Detail:   err.Error(),
			})
			writeErr(w, err)
			return
		}
	}

	id := uuid.NewString()
	start := time.Now()
	result, err := s.Functions.Call(r.Context(), name, req.Args)

	outcome := "ok"
	if err != nil {
		outcome = fault.Kind(err)
	}
	s.Audit.Log(security.AuditEvent{
		Type:     security.EventFunctionCall,
		Client:   client,
		Function: name,
		Outcome:  outcome,
		Metadata: map[string]string{
			"call_id":  id,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		},
	})

	if err != nil {
		s.Logger.Warn("function call failed", "function", name, "call_id", id, "error", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{ID: id, Result: result})
}

// rowCount counts the rows passed to fn: the length of an array, one for an
// object, zero otherwise.
func rowCount(fn string, args []json.RawMessage) int {
	i := functions.RowsParam(fn)
	if i < 0 || i >= len(args) {
		return 0
	}
	raw := bytes.TrimSpace(args[i])
	switch {
	case len(raw) == 0:
		return 0
	case raw[0] == '{':
		return 1
	case raw[0] == '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return 0
		}
		return len(items)
	default:
		return 0
	}
}
