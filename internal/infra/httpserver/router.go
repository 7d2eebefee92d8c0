package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appai "github.com/bryanwahyu/dataguardian/internal/application/ai"
	"github.com/bryanwahyu/dataguardian/internal/application/assessments"
	appscans "github.com/bryanwahyu/dataguardian/internal/application/scans"
	domai "github.com/bryanwahyu/dataguardian/internal/domain/ai"
	"github.com/bryanwahyu/dataguardian/internal/domain/aiact"
	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	domain "github.com/bryanwahyu/dataguardian/internal/domain/scans"
	"github.com/bryanwahyu/dataguardian/internal/domain/soc2"
	"github.com/bryanwahyu/dataguardian/internal/infra/export/sarif"
	"github.com/bryanwahyu/dataguardian/internal/middleware"
)

const maxBodyBytes = 1 << 20

// ToolName and Version label SARIF output.
var (
	ToolName = "dataguardian"
	Version  = "dev"
)

// Deps are the services and settings the router serves.
type Deps struct {
	Scans       *appscans.Service
	Assessments *assessments.Service
	AI          *appai.Service // nil disables /ai routes
	Log         *zap.SugaredLogger

	APIKeys        map[string]string
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	HealthCheckers map[string]middleware.HealthChecker
}

type Router struct {
	scansSvc  *appscans.Service
	assessSvc *assessments.Service
	aiSvc     *appai.Service
	log       *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Router{scansSvc: d.Scans, assessSvc: d.Assessments, aiSvc: d.AI, log: log}
	mux := chi.NewRouter()

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.Metrics)
	mux.Use(middleware.APIKeyAuth(d.APIKeys))
	if d.RateLimiter != nil {
		mux.Use(middleware.RateLimit(d.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.HealthCheckers))
	mux.Get("/readyz", middleware.ReadinessHandler(d.HealthCheckers))
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)

		rt.Post("/scans/soc2", r.wrap(r.handleTriggerScan))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Get("/scans/latest", r.wrap(r.handleLatest))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Get("/scans/{id}/errors", r.wrap(r.handleErrors))
		rt.Get("/scans/{id}/report", r.wrap(r.handleReport))
		rt.Post("/scans/{id}/retry", r.wrap(r.handleRetry))
		rt.Get("/summary", r.wrap(r.handleSummary))

		rt.Post("/ai-act/classify", r.wrap(r.handleClassify))
		rt.Post("/ai-act/assess", r.wrap(r.handleAssessAIAct))
		rt.Post("/bias/assess", r.wrap(r.handleAssessBias))

		if r.aiSvc != nil {
			rt.Post("/ai/analyze", r.wrap(r.handleAIAnalyze))
			rt.Get("/ai/analyze", r.wrap(r.handleAIAnalyzeList))
			rt.Get("/scans/{id}/analysis", r.wrap(r.handleLatestAnalysis))
		}
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// httpError carries a status code for request problems found in handlers.
type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &httpError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		switch {
		case errors.As(err, &he):
			http.Error(w, he.msg, he.code)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidTarget), errors.Is(err, aiact.ErrInvalidProfile):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		case errors.Is(err, domai.ErrEmptyResponse):
			http.Error(w, "ai provider returned no content", http.StatusBadGateway)
		default:
			r.log.Errorw("handler failed", "method", req.Method, "path", req.URL.Path, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	body := http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &httpError{code: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		}
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func queryInt(req *http.Request, name string) int {
	v, _ := strconv.Atoi(req.URL.Query().Get(name))
	return v
}

func scanID(req *http.Request) (domain.ScanID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return "", badRequest("%v", err)
	}
	return domain.ScanID(id), nil
}

// POST /v1/{tenant}/scans/soc2
// Body: {"repo_url": "...", "ref": "main", "source": "ci", "commit_sha": "...", "async": false}
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		RepoURL   string `json:"repo_url"`
		Ref       string `json:"ref"`
		Source    string `json:"source"`
		CommitSHA string `json:"commit_sha"`
		Async     bool   `json:"async"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	host, err := middleware.ValidateRepoURL(body.RepoURL)
	if err != nil {
		return badRequest("%v", err)
	}
	if err := middleware.ValidateRef(body.Ref); err != nil {
		return badRequest("%v", err)
	}

	cmd := appscans.TriggerScanCommand{
		TenantID:  tenant,
		Target:    body.RepoURL,
		Ref:       body.Ref,
		Source:    middleware.SanitizeString(body.Source),
		CommitSHA: middleware.SanitizeString(body.CommitSHA),
	}
	kind := string(domain.KindSOC2)
	middleware.ScanStarted(kind)

	if body.Async || req.URL.Query().Get("async") == "true" {
		// jalan di background, respons langsung dikembalikan
		id, err := r.scansSvc.TriggerScanAsync(req.Context(), cmd, func(res appscans.TriggerScanResult, _ error) {
			finish(kind, res)
		})
		if err != nil {
			middleware.ScanFinished(kind, string(domain.StatusFailed))
			return err
		}
		r.log.Infow("soc2 scan queued", "tenant", tenant, "scan_id", id, "host", host)
		return writeJSON(w, http.StatusAccepted, map[string]any{
			"id":     id,
			"status": domain.StatusQueued,
		})
	}

	res, err := r.scansSvc.TriggerScan(req.Context(), cmd)
	finish(kind, res)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func finish(kind string, res appscans.TriggerScanResult) {
	status := res.Status
	if status == "" {
		status = string(domain.StatusFailed)
	}
	middleware.ScanFinished(kind, status)
	middleware.ObserveFindings(kind, res.Counts.High, res.Counts.Medium, res.Counts.Low)
}

// GET /v1/{tenant}/scans?page=&page_size=&kind=&status=&target=&branch=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	q := req.URL.Query()
	kind, err := middleware.ValidateKind(q.Get("kind"))
	if err != nil {
		return badRequest("%v", err)
	}
	status, err := middleware.ValidateStatus(q.Get("status"))
	if err != nil {
		return badRequest("%v", err)
	}
	f := domain.Filter{
		Kind:   kind,
		Status: status,
		Target: middleware.SanitizeString(q.Get("target")),
		Branch: middleware.SanitizeString(q.Get("branch")),
	}
	page, err := r.scansSvc.List(req.Context(), tenant, queryInt(req, "page"), queryInt(req, "page_size"), f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, page)
}

// GET /v1/{tenant}/scans/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	list, err := r.scansSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Scan{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	scan, err := r.scansSvc.Get(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// GET /v1/{tenant}/scans/{id}/errors?limit=20
func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	list, err := r.scansSvc.ErrorsFor(req.Context(), chi.URLParam(req, "tenant"), id, middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/scans/{id}/report?format=json|sarif
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	scan, data, err := r.scansSvc.Report(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}

	switch format := req.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		_, err = w.Write(data)
		return err
	case "sarif":
		if scan.Kind != domain.KindSOC2 {
			return badRequest("sarif output is only available for soc2 scans")
		}
		var result soc2.ScanResult
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("decode stored report %s: %w", id, err)
		}
		w.Header().Set("Content-Type", "application/sarif+json")
		return sarif.Write(w, result.Findings, ToolName, Version)
	default:
		return badRequest("unknown format %q (allowed: json, sarif)", format)
	}
}

// POST /v1/{tenant}/scans/{id}/retry
func (r *Router) handleRetry(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	kind := string(domain.KindSOC2)
	middleware.ScanStarted(kind)
	res, err := r.scansSvc.RetryScan(req.Context(), chi.URLParam(req, "tenant"), id)
	finish(kind, res)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days := middleware.ValidateDays(queryInt(req, "days"))
	summary, err := r.scansSvc.Summary(req.Context(), chi.URLParam(req, "tenant"), days)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// POST /v1/{tenant}/ai-act/classify
// Body: AI system profile
func (r *Router) handleClassify(w http.ResponseWriter, req *http.Request) error {
	var profile aiact.AISystemProfile
	if err := decode(w, req, &profile); err != nil {
		return err
	}
	c, err := r.assessSvc.ClassifyAIAct(profile)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
}

// POST /v1/{tenant}/ai-act/assess
// Body: {"profile": {...}, "compliance": {"human_oversight": true}, "annual_turnover": 1000000}
func (r *Router) handleAssessAIAct(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Profile        aiact.AISystemProfile `json:"profile"`
		Compliance     map[string]bool       `json:"compliance"`
		AnnualTurnover float64               `json:"annual_turnover"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	kind := string(domain.KindAIAct)
	middleware.ScanStarted(kind)
	res, err := r.assessSvc.AssessAIAct(req.Context(), assessments.AssessAIActCommand{
		TenantID:       chi.URLParam(req, "tenant"),
		Profile:        body.Profile,
		Compliance:     body.Compliance,
		AnnualTurnover: body.AnnualTurnover,
	})
	if err != nil {
		middleware.ScanFinished(kind, string(domain.StatusFailed))
		return err
	}
	middleware.ScanFinished(kind, string(domain.StatusSuccess))
	return writeJSON(w, http.StatusOK, res)
}

// POST /v1/{tenant}/bias/assess
// Body: {"model_file": "model.pkl", "metadata": {...}}
func (r *Router) handleAssessBias(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ModelFile string                 `json:"model_file"`
		Metadata  fairness.ModelMetadata `json:"metadata"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	kind := string(domain.KindBias)
	middleware.ScanStarted(kind)
	res, err := r.assessSvc.AssessBias(req.Context(), assessments.AssessBiasCommand{
		TenantID:  chi.URLParam(req, "tenant"),
		ModelFile: middleware.SanitizeString(body.ModelFile),
		Metadata:  body.Metadata,
	})
	if err != nil {
		middleware.ScanFinished(kind, string(domain.StatusFailed))
		return err
	}
	middleware.ScanFinished(kind, string(domain.StatusSuccess))
	return writeJSON(w, http.StatusOK, res)
}

// POST /v1/{tenant}/ai/analyze
// Body: {"scan_id": "<id>"}
func (r *Router) handleAIAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ScanID string `json:"scan_id"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateScanID(body.ScanID); err != nil {
		return badRequest("%v", err)
	}
	a, err := r.aiSvc.AnalyzeScan(req.Context(), chi.URLParam(req, "tenant"), domain.ScanID(body.ScanID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /v1/{tenant}/ai/analyze?page=&page_size=
func (r *Router) handleAIAnalyzeList(w http.ResponseWriter, req *http.Request) error {
	list, err := r.aiSvc.ListAnalyses(req.Context(), chi.URLParam(req, "tenant"), queryInt(req, "page"), queryInt(req, "page_size"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/scans/{id}/analysis
func (r *Router) handleLatestAnalysis(w http.ResponseWriter, req *http.Request) error {
	id, err := scanID(req)
	if err != nil {
		return err
	}
	a, err := r.aiSvc.LatestForScan(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}
