package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serjnsk/dl-network/internal/dns"
	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/repository"
	"github.com/serjnsk/dl-network/internal/service/auth"
	"github.com/serjnsk/dl-network/internal/service/deploy"
	"github.com/serjnsk/dl-network/internal/service/domains"
	"github.com/serjnsk/dl-network/internal/service/project"
	"github.com/serjnsk/dl-network/internal/ws"
	"github.com/serjnsk/dl-network/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	projects project.Service
	domains  domains.Service
	deploys  deploy.Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error
	cfg      config.DashboardConfig

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	deployResults      *prometheus.CounterVec
}

const (
	rateWindowDefault    = time.Minute
	rateWindowRealtime   = 30 * time.Second
	rateLimitLogin       = 10
	rateLimitSessionRead = 240
	rateLimitWrite       = 120
	rateLimitPublish     = 10
	rateLimitWebsocket   = 30
	healthCheckTimeout   = 2 * time.Second
	sseHeartbeatInterval = 25 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, projectSvc project.Service, domainSvc domains.Service, deploySvc deploy.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error, cfg config.DashboardConfig) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		projects: projectSvc,
		domains:  domainSvc,
		deploys:  deploySvc,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
		cfg:      cfg,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.handleLogout))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.handlerAuthRate("/projects", rateLimitWrite, rateWindowDefault, r.handleProjects)))
	r.mux.HandleFunc("/projects/", r.audit("/projects/:id", r.handlerAuthRate("/projects/:id", rateLimitWrite, rateWindowDefault, r.handleProjectSubroutes)))
	r.mux.HandleFunc("/domains", r.audit("/domains", r.handlerAuthRate("/domains", rateLimitWrite, rateWindowDefault, r.handleDomains)))
	r.mux.HandleFunc("/domains/", r.audit("/domains/:id", r.handlerAuthRate("/domains/:id", rateLimitWrite, rateWindowDefault, r.handleDomainByID)))
	r.mux.HandleFunc("/templates", r.audit("/templates", r.handlerAuthRate("/templates", rateLimitSessionRead, rateWindowDefault, r.handleTemplates)))
	r.mux.HandleFunc("/ws/deploys", r.audit("/ws/deploys", r.handlerAuthRate("/ws/deploys", rateLimitWebsocket, rateWindowRealtime, r.handleDeployWS)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]string{}
	status := http.StatusOK
	if r.dbHealth != nil {
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Error("health check failed", "component", "database", "error", err)
			components["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "components": components})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := r.auth.Login(payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrLoginDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		projects, err := r.projects.List(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list projects")
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		var payload struct {
			Name       string  `json:"name"`
			Slug       string  `json:"slug"`
			TemplateID *string `json:"template_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := r.projects.Create(req.Context(), project.CreateInput{
			Name:       payload.Name,
			Slug:       payload.Slug,
			TemplateID: payload.TemplateID,
		})
		if err != nil {
			r.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (r *Router) writeProjectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrInvalidName), errors.Is(err, project.ErrInvalidSlug):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, project.ErrSlugTaken):
		writeError(w, http.StatusConflict, err.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "project not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleProjectSubroutes dispatches /projects/{id}[/...] paths.
func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/projects/"), "/")
	segments := strings.Split(rest, "/")
	if rest == "" || segments[0] == "" {
		writeError(w, http.StatusNotFound, "project id required")
		return
	}
	projectID := segments[0]

	switch {
	case len(segments) == 1:
		r.handleProjectByID(w, req, projectID)
	case len(segments) == 2 && segments[1] == "code":
		r.handleProjectCode(w, req, projectID)
	case len(segments) == 2 && segments[1] == "pages":
		r.handleProjectPages(w, req, projectID)
	case len(segments) == 3 && segments[1] == "pages":
		r.handleProjectPage(w, req, projectID, segments[2])
	case len(segments) == 2 && segments[1] == "publish":
		// publish gets a tighter quota than other writes
		r.withRateLimit("/projects/:id/publish", rateLimitPublish, rateWindowDefault, r.rateLimitKeySession, func(w http.ResponseWriter, req *http.Request) {
			r.handlePublish(w, req, projectID)
		})(w, req)
	case len(segments) == 2 && segments[1] == "events":
		r.handleDeploySSE(w, req, projectID)
	case len(segments) == 2 && segments[1] == "deployments":
		r.handleDeployments(w, req, projectID)
	case len(segments) == 4 && segments[1] == "deployments" && segments[3] == "retry":
		r.handleDeploymentRetry(w, req, projectID, segments[2])
	case len(segments) == 4 && segments[1] == "deployments" && segments[3] == "rollback":
		r.handleDeploymentRollback(w, req, projectID, segments[2])
	case len(segments) == 2 && segments[1] == "domains":
		r.handleProjectDomains(w, req, projectID)
	case len(segments) == 3 && segments[1] == "domains":
		r.handleProjectDomainLink(w, req, projectID, segments[2])
	case len(segments) == 4 && segments[1] == "domains":
		r.handleProjectDomainAction(w, req, projectID, segments[2], segments[3])
	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

func (r *Router) handleProjectByID(w http.ResponseWriter, req *http.Request, projectID string) {
	switch req.Method {
	case http.MethodGet:
		proj, err := r.projects.Get(req.Context(), projectID)
		if err != nil {
			r.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	case http.MethodPut:
		proj, err := r.projects.Get(req.Context(), projectID)
		if err != nil {
			r.writeProjectError(w, err)
			return
		}
		var payload struct {
			Name       string  `json:"name"`
			Slug       string  `json:"slug"`
			TemplateID *string `json:"template_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		proj.Name = payload.Name
		proj.Slug = payload.Slug
		if payload.TemplateID != nil {
			proj.TemplateID = payload.TemplateID
		}
		if err := r.projects.Update(req.Context(), proj); err != nil {
			r.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proj)
	case http.MethodDelete:
		if err := r.projects.Delete(req.Context(), projectID); err != nil {
			r.writeProjectError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (r *Router) handleProjectCode(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		GlobalHeadCode string `json:"global_head_code"`
		GlobalBodyCode string `json:"global_body_code"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := r.projects.SetGlobalCode(req.Context(), projectID, payload.GlobalHeadCode, payload.GlobalBodyCode); err != nil {
		r.writeProjectError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleProjectPages(w http.ResponseWriter, req *http.Request, projectID string) {
	switch req.Method {
	case http.MethodGet:
		pages, err := r.projects.ListPages(req.Context(), projectID)
		if err != nil {
			r.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pages)
	case http.MethodPost:
		var payload struct {
			Slug      string `json:"slug"`
			Title     string `json:"title"`
			HTML      string `json:"html"`
			PageOrder int    `json:"page_order"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		page, err := r.projects.UpsertPage(req.Context(), project.PageInput{
			ProjectID: projectID,
			Slug:      payload.Slug,
			Title:     payload.Title,
			HTML:      payload.HTML,
			PageOrder: payload.PageOrder,
		})
		if err != nil {
			r.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, page)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (r *Router) handleProjectPage(w http.ResponseWriter, req *http.Request, projectID, slug string) {
	if req.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.projects.DeletePage(req.Context(), projectID, slug); err != nil {
		r.writeProjectError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublish runs the deploy workflow synchronously; progress events stream
// over the websocket/SSE channels while the request is in flight.
func (r *Router) handlePublish(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result := r.deploys.Deploy(req.Context(), projectID)
	if result.Success {
		r.recordDeployResult("success")
		writeJSON(w, http.StatusOK, result)
		return
	}
	r.recordDeployResult("failure")
	writeJSON(w, publishStatus(result), result)
}

// publishStatus maps a failed publish to its HTTP status via the result's
// cause chain.
func publishStatus(result deploy.Result) int {
	switch {
	case errors.Is(result.Cause, deploy.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(result.Cause, deploy.ErrNoPages):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (r *Router) handleDeployments(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	deployments, err := r.deploys.History(req.Context(), projectID)
	if err != nil {
		r.writeDeployError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployments)
}

func (r *Router) handleDeploymentRetry(w http.ResponseWriter, req *http.Request, projectID, deploymentID string) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	deployment, err := r.deploys.Retry(req.Context(), projectID, deploymentID)
	if err != nil {
		r.writeDeployError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployment)
}

func (r *Router) handleDeploymentRollback(w http.ResponseWriter, req *http.Request, projectID, deploymentID string) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	deployment, err := r.deploys.Rollback(req.Context(), projectID, deploymentID)
	if err != nil {
		r.writeDeployError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployment)
}

func (r *Router) writeDeployError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, deploy.ErrHistoryUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (r *Router) handleDomains(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		pool, err := r.domains.List(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list domains")
			return
		}
		writeJSON(w, http.StatusOK, pool)
	case http.MethodPost:
		var payload struct {
			Name string `json:"domain_name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := r.domains.Create(req.Context(), payload.Name)
		if err != nil {
			r.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (r *Router) handleDomainByID(w http.ResponseWriter, req *http.Request) {
	domainID := strings.Trim(strings.TrimPrefix(req.URL.Path, "/domains/"), "/")
	if domainID == "" || strings.Contains(domainID, "/") {
		writeError(w, http.StatusNotFound, "unknown route")
		return
	}
	if req.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.domains.Delete(req.Context(), domainID); err != nil {
		r.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domains.ErrInvalidDomainName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domains.ErrDomainExists), errors.Is(err, domains.ErrAlreadyLinked), errors.Is(err, domains.ErrDomainLinked):
		writeError(w, http.StatusConflict, err.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (r *Router) handleProjectDomains(w http.ResponseWriter, req *http.Request, projectID string) {
	switch req.Method {
	case http.MethodGet:
		linked, err := r.domains.ListLinked(req.Context(), projectID)
		if err != nil {
			r.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, linked)
	case http.MethodPost:
		var payload struct {
			DomainID  string `json:"domain_id"`
			IsPrimary bool   `json:"is_primary"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		link, err := r.domains.Link(req.Context(), projectID, payload.DomainID, payload.IsPrimary)
		if err != nil {
			r.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, link)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (r *Router) handleProjectDomainLink(w http.ResponseWriter, req *http.Request, projectID, linkID string) {
	if req.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := r.domains.Unlink(req.Context(), linkID); err != nil {
		r.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleProjectDomainAction(w http.ResponseWriter, req *http.Request, projectID, linkID, action string) {
	switch action {
	case "tracking":
		r.handleLinkTracking(w, req, linkID)
		return
	}
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch action {
	case "primary":
		if err := r.domains.SetPrimary(req.Context(), projectID, linkID); err != nil {
			r.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "connect":
		if err := r.domains.Connect(req.Context(), linkID); err != nil {
			r.writeConnectError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "disconnect":
		if err := r.domains.Disconnect(req.Context(), linkID); err != nil {
			r.writeConnectError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "verify":
		active, err := r.domains.VerifyLink(req.Context(), linkID)
		if err != nil {
			r.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"active": active})
	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

func (r *Router) writeConnectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dns.ErrZoneNotFound):
		writeError(w, http.StatusConflict, err.Error())
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (r *Router) handleLinkTracking(w http.ResponseWriter, req *http.Request, linkID string) {
	if req.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var cfg domain.TrackingConfig
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := r.domains.SetTracking(req.Context(), linkID, cfg); err != nil {
		r.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleTemplates(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	activeOnly := req.URL.Query().Get("all") == ""
	templates, err := r.projects.ListTemplates(req.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// handleDeployWS streams publish progress events over a websocket. The client
// subscribes to one project and the connection lives until the peer closes it.
func (r *Router) handleDeployWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	projectID := strings.TrimSpace(req.URL.Query().Get("project_id"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(projectID, client)
	r.logger.Info("deploy stream attached", "project_id", projectID)

	go func() {
		defer func() {
			r.hub.Unregister(projectID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleDeploySSE streams the same publish progress events for clients that
// cannot hold a websocket.
func (r *Router) handleDeploySSE(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(projectID, client)
	defer func() {
		r.hub.Unregister(projectID, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// audit wraps a handler with request logging and metrics. The route label is
// the registered pattern, not the raw path, to keep metric cardinality flat.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Role
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}
