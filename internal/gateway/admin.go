package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/security"
	"github.com/flemzord/tabllm/internal/store"
)

func (s *server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.Store.ListModels(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *server) handlePutModel(w http.ResponseWriter, r *http.Request) {
	var m store.Model
	if err := s.decode(r, &m); err != nil {
		writeErr(w, err)
		return
	}
	if err := store.ValidateModel(m); err != nil {
		writeErr(w, fault.Validationf("%v", err))
		return
	}
	if err := s.Store.PutModel(r.Context(), m); err != nil {
		writeErr(w, err)
		return
	}
	s.Audit.Log(security.AuditEvent{
		Type:     security.EventModelChange,
		Client:   clientFrom(r),
		Detail:   "put " + m.Name,
		Metadata: map[string]string{"provider": m.Provider, "model": m.Model},
	})
	writeJSON(w, http.StatusCreated, m)
}

func (s *server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Store.DeleteModel(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	s.Audit.Log(security.AuditEvent{
		Type:   security.EventModelChange,
		Client: clientFrom(r),
		Detail: "delete " + name,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.Store.ListPrompts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

type putPromptRequest struct {
	Name  string            `json:"name"`
	Text  string            `json:"text"`
	Scope store.PromptScope `json:"scope"`
}

func (s *server) handlePutPrompt(w http.ResponseWriter, r *http.Request) {
	var req putPromptRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Scope == "" {
		req.Scope = store.ScopeProject
	}
	switch {
	case req.Name == "":
		writeErr(w, fault.Validationf("name is required"))
		return
	case req.Text == "":
		writeErr(w, fault.Validationf("text is required"))
		return
	case !store.ValidScope(req.Scope):
		writeErr(w, fault.Validationf("unknown scope %q", req.Scope))
		return
	}

	version, err := s.Store.PutPrompt(r.Context(), req.Scope, req.Name, req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.Audit.Log(security.AuditEvent{
		Type:     security.EventPromptChange,
		Client:   clientFrom(r),
		Detail:   req.Name,
		Metadata: map[string]string{"scope": string(req.Scope)},
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"name":    req.Name,
		"scope":   req.Scope,
		"version": version,
	})
}

type putSecretRequest struct {
	Secret string `json:"secret"`
}

// handlePutSecret stores a provider secret. The value is registered with
// the redactor before anything can log it and is never echoed back.
func (s *server) handlePutSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	var req putSecretRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Secret == "" {
		writeErr(w, fault.Validationf("secret is required"))
		return
	}
	if s.Redactor != nil {
		s.Redactor.AddLiteral(req.Secret)
	}
	if err := s.Store.PutSecret(r.Context(), name, req.Secret); err != nil {
		writeErr(w, err)
		return
	}
	s.Audit.Log(security.AuditEvent{
		Type:   security.EventSecretChange,
		Client: clientFrom(r),
		Detail: name,
	})
	w.WriteHeader(http.StatusNoContent)
}
