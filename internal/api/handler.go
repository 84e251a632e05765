package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/automation/internal/bus"
	"github.com/gyaneshwarpardhi/automation/internal/config"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/explain"
	"github.com/gyaneshwarpardhi/automation/internal/metrics"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/rule"
	"github.com/gyaneshwarpardhi/automation/internal/runtime"
)

const maxBatchSize = 100

// Deps are the collaborators the HTTP surface is wired to. Loader, Catalog,
// Bus, Observability and Explain may be nil; their routes then answer 503.
type Deps struct {
	Runtime       *runtime.Runtime
	Loader        *config.Loader
	Catalog       *rule.StaticCatalog
	Bus           *bus.Dispatcher
	Observability *observability.Service
	Explain       *explain.Service
	Logger        *slog.Logger
	Now           func() time.Time
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Deps
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	h := &Handler{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events", h.ingestEvent)
		r.Post("/events/batch", h.ingestBatch)
		r.Post("/plans", h.planOnly)
		r.Get("/plans/{auditId}", h.getPlan)
		r.Get("/intents/{auditId}", h.getIntent)

		r.Get("/rules", h.listRules)
		r.Post("/rules/reload", h.reloadRules)

		r.Route("/observability", func(r chi.Router) {
			r.Get("/latency", h.latency)
			r.Get("/success-rate", h.successRate)
			r.Get("/failures", h.failures)
		})
		r.Route("/explain", func(r chi.Router) {
			r.Get("/runs/{id}", h.explainRun)
			r.Get("/rule-versions/{id}", h.explainRuleVersion)
			r.Get("/action-runs/{id}", h.explainActionRun)
		})
	})
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// POST /v1/events: match against the catalog and return the plan.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	h.stamp(&ev)

	res, err := h.Runtime.RunEvent(r.Context(), &ev)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/events/batch: queue events for asynchronous planning.
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "async dispatch is not configured")
		return
	}
	var events []*event.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(events), maxBatchSize))
		return
	}

	queued := 0
	for _, ev := range events {
		if ev == nil {
			continue
		}
		h.stamp(ev)
		if h.Bus.Publish(ev) {
			queued++
		} else {
			metrics.EventsDropped.Inc()
		}
	}
	metrics.QueueUtilization.Set(h.Bus.QueueUtilization())

	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":    uuid.NewString(),
		"total":    len(events),
		"queued":   queued,
		"rejected": len(events) - queued,
	})
}

type planRequest struct {
	Event        *event.Event `json:"event"`
	MatchedRules []rule.Match `json:"matchedRules"`
}

// POST /v1/plans: plan an event against caller-supplied matched rules.
func (h *Handler) planOnly(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Event == nil {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	h.stamp(req.Event)

	res, err := h.Runtime.RunPlanOnly(r.Context(), req.Event, req.MatchedRules)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/plans/{auditId}
func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "auditId")
	rec, err := h.Runtime.GetPlan(r.Context(), id)
	if err != nil {
		h.Logger.Error("read plan failed", "audit_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read plan")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("plan %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /v1/intents/{auditId}
func (h *Handler) getIntent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "auditId")
	in, ok := h.Runtime.Intent(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("intent %s not found or expired", id))
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// GET /v1/rules: list loaded rules.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "rule catalog is not configured")
		return
	}
	resp := map[string]any{"rules": h.Catalog.All()}
	if h.Loader != nil {
		resp["version"] = h.Loader.Config().Version
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /v1/rules/reload: hot-reload rules from disk.
func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	if h.Loader == nil {
		writeError(w, http.StatusServiceUnavailable, "rule loader is not configured")
		return
	}
	cfg, err := h.Loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":   true,
		"version":    cfg.Version,
		"rulesCount": len(cfg.Rules),
		"execution":  cfg.Execution.Enabled(),
	})
}

// GET /v1/observability/latency
func (h *Handler) latency(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	m, err := h.Observability.LatencyMetrics(r.Context(), win)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /v1/observability/success-rate
func (h *Handler) successRate(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	rate, err := h.Observability.SuccessRate(r.Context(), win)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"successRate": rate})
}

// GET /v1/observability/failures
func (h *Handler) failures(w http.ResponseWriter, r *http.Request) {
	win, ok := h.window(w, r)
	if !ok {
		return
	}
	b, err := h.Observability.FailureBreakdown(r.Context(), win)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) explainRun(w http.ResponseWriter, r *http.Request) {
	h.explain(w, r, "run", func(id string) (*explain.Explanation, error) {
		return h.Explain.ExplainRun(r.Context(), id)
	})
}

func (h *Handler) explainRuleVersion(w http.ResponseWriter, r *http.Request) {
	h.explain(w, r, "rule version", func(id string) (*explain.Explanation, error) {
		return h.Explain.ExplainRuleVersion(r.Context(), id)
	})
}

func (h *Handler) explainActionRun(w http.ResponseWriter, r *http.Request) {
	h.explain(w, r, "action run", func(id string) (*explain.Explanation, error) {
		return h.Explain.ExplainActionRun(r.Context(), id)
	})
}

func (h *Handler) explain(w http.ResponseWriter, r *http.Request, kind string, fn func(string) (*explain.Explanation, error)) {
	if h.Explain == nil {
		writeError(w, http.StatusServiceUnavailable, "explain is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	ex, err := fn(id)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	if ex == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %s not found", kind, id))
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the dispatch queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	var util float64
	if h.Bus != nil {
		util = h.Bus.QueueUtilization()
	}
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":           "overloaded",
			"queueUtilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"queueUtilization": util,
	})
}

func (h *Handler) stamp(ev *event.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.Now()
	}
}

// window parses the optional from/to RFC 3339 query bounds.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (observability.Window, bool) {
	var win observability.Window
	if h.Observability == nil {
		writeError(w, http.StatusServiceUnavailable, "observability is not configured")
		return win, false
	}
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"from", &win.From}, {"to", &win.To}} {
		v := r.URL.Query().Get(b.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %s", b.name, err))
			return win, false
		}
		*b.dst = t
	}
	if !win.From.IsZero() && !win.To.IsZero() && !win.From.Before(win.To) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return win, false
	}
	return win, true
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, event.ErrMissingTenant), errors.Is(err, event.ErrMissingName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, runtime.ErrNoCatalog):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.Logger.Error("plan failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	h.Logger.Error("query failed", "err", err)
	writeError(w, http.StatusInternalServerError, "query failed")
}
