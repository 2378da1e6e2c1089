package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/cracks"
	"github.com/soaringjerry/cracks/internal/metrics"
	"github.com/soaringjerry/cracks/internal/middleware"
	"github.com/soaringjerry/cracks/internal/models"
	"github.com/soaringjerry/cracks/internal/services"
	"github.com/soaringjerry/cracks/internal/utils"
)

const maxBodyBytes = 1 << 20

// Options wires the router to its collaborators. Store, Sessions, Targets and
// Auth are required.
type Options struct {
	Store             Store
	Sessions          *services.SessionService
	Targets           []services.Target
	Dichotomies       []services.Dichotomy
	Catalog           *cracks.Catalog
	Auth              *middleware.Authenticator
	AdminUser         string
	AdminPasswordHash string
	Publisher         services.SubmissionPublisher
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
	Commit            string
	BuildTime         string
}

type Router struct {
	opts        Options
	targets     []services.Target
	aggregators map[string]*services.ResponseAggregator
	dichotomies map[string]services.Dichotomy
	logger      *zap.Logger
}

func NewRouter(opts Options) (*Router, error) {
	if opts.Store == nil || opts.Sessions == nil || opts.Auth == nil {
		return nil, errors.New("router: store, sessions and auth are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	rt := &Router{
		opts:        opts,
		targets:     append([]services.Target(nil), opts.Targets...),
		aggregators: map[string]*services.ResponseAggregator{},
		dichotomies: map[string]services.Dichotomy{},
		logger:      opts.Logger,
	}
	records := NewRecordStoreAdapter(opts.Store)
	for _, t := range opts.Targets {
		if _, dup := rt.aggregators[t.Name]; dup {
			return nil, fmt.Errorf("router: duplicate target %q", t.Name)
		}
		aggOpts := []services.AggregatorOption{services.WithLogger(opts.Logger.Named("aggregator"))}
		if opts.Publisher != nil {
			aggOpts = append(aggOpts, services.WithPublisher(opts.Publisher))
		}
		if opts.Metrics != nil {
			aggOpts = append(aggOpts, services.WithObserver(opts.Metrics))
		}
		rt.aggregators[t.Name] = services.NewResponseAggregator(records, t, aggOpts...)
	}
	for _, d := range opts.Dichotomies {
		rt.dichotomies[d.Name] = d
	}
	return rt, nil
}

// Aggregator returns the aggregator of a configured target.
func (rt *Router) Aggregator(target string) (*services.ResponseAggregator, bool) {
	agg, ok := rt.aggregators[target]
	return agg, ok
}

// Handler builds the HTTP handler with the full middleware chain.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(rt.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS)
	r.Use(middleware.LocaleMiddleware)

	r.Get("/health", rt.handleHealth)
	r.Get("/version", rt.handleVersion)
	if rt.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(rt.opts.Auth.WithAuth)

		r.Get("/targets", rt.handleTargets)
		r.Post("/responses/{target}", rt.handleSubmit)
		r.Get("/responses/{target}/me", rt.handleLoadOwn)

		r.Post("/sessions", rt.handleStartSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", rt.handleGetSession)
			r.Post("/auth", rt.handleAuthenticateSession)
			r.Put("/answers", rt.handleAnswers)
			r.Post("/dichotomies/{name}", rt.handleDichotomy)
			r.Post("/read", rt.handleRead)
			r.Post("/submit/{target}", rt.handleSessionSubmit)
		})

		r.Get("/cracks", rt.handleCracks)
		r.Get("/cracks/points", rt.handleCrackPoints)

		r.With(middleware.AdminBasicAuth(rt.opts.AdminUser, rt.opts.AdminPasswordHash)).
			Get("/admin/export/{target}", rt.handleExport)
	})
	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "cracks",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.opts.Commit,
		"build_time": rt.opts.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     rt.opts.Commit,
		"build_time": rt.opts.BuildTime,
	})
}

func (rt *Router) handleTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"targets": rt.targets})
}

// POST /api/responses/{target}
// { payload: {...} }, signed by the bearer token
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	agg, ok := rt.aggregatorFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Payload models.Payload `json:"payload"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sig, _ := middleware.SignatureFromContext(r.Context())
	res, err := agg.Submit(r.Context(), sig, req.Payload)
	rt.writeSubmitOutcome(w, r, res, err)
}

// GET /api/responses/{target}/me
func (rt *Router) handleLoadOwn(w http.ResponseWriter, r *http.Request) {
	agg, ok := rt.aggregatorFor(w, r)
	if !ok {
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	sig, ok := middleware.SignatureFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, utils.T(locale, "submit.missing_identity"))
		return
	}
	p, err := agg.Load(r.Context(), sig)
	if err != nil {
		rt.logger.Warn("load payload", zap.String("signature", utils.MaskSignature(sig)), zap.Error(err))
		writeError(w, http.StatusBadGateway, utils.T(locale, "submit.storage"))
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, utils.T(locale, "record.not_found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":    agg.Target().Name,
		"signature": utils.MaskSignature(sig),
		"payload":   p,
	})
}

func (rt *Router) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sig, _ := middleware.SignatureFromContext(r.Context())
	sess, err := rt.opts.Sessions.Start(sig)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.SessionStarted()
	}
	writeJSON(w, http.StatusCreated, sessionView(sess))
}

func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.opts.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// POST /api/sessions/{id}/auth binds the session to the bearer token's signature.
func (rt *Router) handleAuthenticateSession(w http.ResponseWriter, r *http.Request) {
	sig, _ := middleware.SignatureFromContext(r.Context())
	sess, err := rt.opts.Sessions.Authenticate(chi.URLParam(r, "id"), sig)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// PUT /api/sessions/{id}/answers
// { answers: {...} }
func (rt *Router) handleAnswers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers models.Payload `json:"answers"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := rt.opts.Sessions.Answer(chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

// POST /api/sessions/{id}/dichotomies/{name}
// { value: 0.42 }
func (rt *Router) handleDichotomy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q, ok := rt.dichotomies[name]
	if !ok {
		writeError(w, http.StatusNotFound, "dichotomy not found")
		return
	}
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, utils.T(middleware.LocaleFromContext(r.Context()), "dichotomy.unanswered"))
		return
	}
	sess, msg, err := rt.opts.Sessions.AnswerDichotomy(chi.URLParam(r, "id"), q, *req.Value)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	if *req.Value == 0 {
		msg = utils.T(middleware.LocaleFromContext(r.Context()), "dichotomy.unanswered")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sessionView(sess),
		"question": q,
		"message":  msg,
	})
}

// POST /api/sessions/{id}/read
// { text: "..." }
func (rt *Router) handleRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	first, err := rt.opts.Sessions.MarkRead(chi.URLParam(r, "id"), req.Text)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"first_read": first})
}

func (rt *Router) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	agg, ok := rt.aggregatorFor(w, r)
	if !ok {
		return
	}
	res, err := rt.opts.Sessions.Submit(r.Context(), chi.URLParam(r, "id"), agg)
	if _, isSvc := services.AsServiceError(err); isSvc {
		rt.writeServiceError(w, r, err)
		return
	}
	rt.writeSubmitOutcome(w, r, res, err)
}

func (rt *Router) handleCracks(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Catalog == nil {
		writeError(w, http.StatusNotFound, "catalog not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": rt.opts.Catalog.Categories,
		"summaries":  rt.opts.Catalog.Summaries(),
	})
}

func (rt *Router) handleCrackPoints(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Catalog == nil {
		writeError(w, http.StatusNotFound, "catalog not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": rt.opts.Catalog.Points()})
}

func (rt *Router) aggregatorFor(w http.ResponseWriter, r *http.Request) (*services.ResponseAggregator, bool) {
	name := chi.URLParam(r, "target")
	agg, ok := rt.aggregators[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown target %q", name))
	}
	return agg, ok
}

func (rt *Router) writeSubmitOutcome(w http.ResponseWriter, r *http.Request, res *services.SubmitResult, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	out := services.Classify(err)
	if out.Kind == services.OutcomeOK {
		prior := "submit.prior_missing"
		if res.PriorExists {
			prior = "submit.prior_exists"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":           true,
			"outcome":      out.Kind,
			"message":      utils.T(locale, out.MessageKey()),
			"prior":        utils.T(locale, prior),
			"prior_exists": res.PriorExists,
			"signature":    res.Masked,
			"payload":      res.Payload,
			"submitted_at": res.SubmittedAt.Format(time.RFC3339),
		})
		return
	}
	status := http.StatusBadGateway
	switch out.Kind {
	case services.OutcomeNoData:
		status = http.StatusUnprocessableEntity
	case services.OutcomeMissingIdentity:
		status = http.StatusUnauthorized
	case services.OutcomeStorage:
		rt.logger.Error("submission failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]any{
		"ok":      false,
		"outcome": out.Kind,
		"message": utils.T(locale, out.MessageKey()),
	})
}

func (rt *Router) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	se, ok := services.AsServiceError(err)
	if !ok {
		rt.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch se.Code {
	case services.ErrorInvalid:
		writeError(w, http.StatusBadRequest, se.Message)
	case services.ErrorNotFound:
		writeError(w, http.StatusNotFound, utils.T(locale, "session.not_found"))
	case services.ErrorUnauthorized:
		writeError(w, http.StatusUnauthorized, se.Message)
	case services.ErrorBadGateway:
		writeError(w, http.StatusBadGateway, se.Message)
	default:
		writeError(w, http.StatusInternalServerError, se.Message)
	}
}

func sessionView(s *services.Session) map[string]any {
	data := s.Data
	if data == nil {
		data = models.Payload{}
	}
	view := map[string]any{
		"id":            s.ID,
		"authenticated": s.Authenticated(),
		"data":          data,
		"created_at":    s.CreatedAt.Format(time.RFC3339),
		"expires_at":    s.ExpiresAt.Format(time.RFC3339),
	}
	if s.Authenticated() {
		view["signature"] = utils.MaskSignature(s.Signature)
	}
	return view
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
