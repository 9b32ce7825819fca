// Package api serves the rule operations over HTTP with chi. Responses are
// JSON; errors carry a stable code next to the message.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"automata/internal/rule"
	"automata/internal/storage"
	"automata/internal/suggest"
	"automata/internal/templates"
	"automata/pkg/logx"
)

const maxBodyBytes = 1 << 20

// Service is what the handler needs from the application.
type Service interface {
	Registry() *rule.Registry
	Templates() *templates.Library
	Suggest(text string) suggest.Result

	ListRules(ctx context.Context) ([]*rule.Rule, error)
	GetRule(ctx context.Context, id string) (*rule.Rule, error)
	CreateRule(ctx context.Context, r *rule.Rule) error
	RemoveRule(ctx context.Context, id string) error
	EnableRule(ctx context.Context, id string) (*rule.Rule, error)
	DisableRule(ctx context.Context, id string) (*rule.Rule, error)
	InstantiateTemplate(id string, overrides map[string]string) (*rule.Rule, error)

	Pause(ctx context.Context) (int, error)
	Resume(ctx context.Context) (int, error)
	Paused(ctx context.Context) (bool, error)
}

// Classifier maps service errors that are not validation or lookup errors
// to an HTTP status and code. It returns ok=false for anything else.
type Classifier func(err error) (status int, code string, ok bool)

type Handler struct {
	svc      Service
	log      logx.Logger
	classify Classifier
	pprof    bool
}

type Option func(*Handler)

// WithClassifier adds service-specific error mapping.
func WithClassifier(c Classifier) Option { return func(h *Handler) { h.classify = c } }

// WithProfiler mounts the runtime profiler under /debug.
func WithProfiler(on bool) Option { return func(h *Handler) { h.pprof = on } }

// NewHandler builds the router.
func NewHandler(svc Service, log logx.Logger, opts ...Option) http.Handler {
	h := &Handler{svc: svc, log: log}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)

	r.Get("/healthz", h.health)
	if h.pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/suggest", h.suggestRules)
		r.Get("/kinds", h.kinds)
		r.Get("/templates", h.listTemplates)

		r.Get("/rules", h.listRules)
		r.Post("/rules", h.createRule)
		r.Route("/rules/{id}", func(r chi.Router) {
			r.Get("/", h.getRule)
			r.Delete("/", h.deleteRule)
			r.Post("/enable", h.enableRule)
			r.Post("/disable", h.disableRule)
		})

		r.Post("/pause", h.pause)
		r.Post("/resume", h.resume)
	})
	return r
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type suggestRequest struct {
	Text string `json:"text"`
}

func (h *Handler) suggestRules(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Suggest(req.Text))
}

func (h *Handler) kinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Registry().Catalog())
}

type templateView struct {
	templates.Template
	Blank []string `json:"blank,omitempty"`
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	all := h.svc.Templates().All()
	out := make([]templateView, 0, len(all))
	for _, t := range all {
		out = append(out, templateView{Template: t, Blank: t.Blank()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	paused, err := h.svc.Paused(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if rules == nil {
		rules = []*rule.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "paused": paused})
}

type sideRequest struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

// createRequest builds a rule from an explicit pair or from a template.
type createRequest struct {
	Name     string            `json:"name"`
	Trigger  *sideRequest      `json:"trigger,omitempty"`
	Action   *sideRequest      `json:"action,omitempty"`
	Template string            `json:"template,omitempty"`
	Set      map[string]string `json:"set,omitempty"`
	Enabled  *bool             `json:"enabled,omitempty"`
}

func (h *Handler) buildRule(req createRequest) (*rule.Rule, error) {
	if req.Template != "" {
		rl, err := h.svc.InstantiateTemplate(req.Template, req.Set)
		if err != nil {
			return nil, err
		}
		if req.Name != "" {
			rl.Name = req.Name
		}
		return rl, nil
	}
	if req.Trigger == nil || req.Action == nil {
		return nil, &rule.ValidationError{Variant: "rule", Message: "trigger and action are required"}
	}
	reg := h.svc.Registry()
	tc, ac, err := reg.DecodePair(rule.TriggerKind(req.Trigger.Type), req.Trigger.Config, rule.ActionKind(req.Action.Type), req.Action.Config)
	if err != nil {
		return nil, err
	}
	return rule.New(reg, req.Name, tc, ac)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rl, err := h.buildRule(req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if req.Enabled != nil {
		rl.Enabled = *req.Enabled
	}
	if err := h.svc.CreateRule(r.Context(), rl); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rl)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rl, err := h.svc.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rl)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableRule(w http.ResponseWriter, r *http.Request) {
	rl, err := h.svc.EnableRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rl)
}

func (h *Handler) disableRule(w http.ResponseWriter, r *http.Request) {
	rl, err := h.svc.DisableRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rl)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Pause(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": true, "count": n})
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Resume(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paused": false, "count": n})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "E_BAD_REQUEST")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case rule.IsValidation(err), errors.Is(err, rule.ErrUnknownTrigger), errors.Is(err, rule.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, err.Error(), "E_VALIDATION")
		return
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, templates.ErrUnknown):
		writeError(w, http.StatusNotFound, err.Error(), "E_NOT_FOUND")
		return
	}
	if h.classify != nil {
		if status, code, ok := h.classify(err); ok {
			writeError(w, status, err.Error(), code)
			return
		}
	}
	h.log.Warn("request failed", logx.Err(err))
	writeError(w, http.StatusInternalServerError, err.Error(), "E_INTERNAL")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}
