package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/guard"
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/scope"
	"github.com/atriumhq/atrium/internal/session"
)

// Handler exposes the console API consumed by the front-end. Every
// tenant-scoped read goes through the caller's resolved scope — the client
// never supplies a tenant id for data access.
type Handler struct {
	registry *Registry
	tokens   *TokenService
}

func NewHandler(registry *Registry, tokens *TokenService) *Handler {
	return &Handler{registry: registry, tokens: tokens}
}

// RegisterPublicRoutes registers the routes reachable without a session.
func (h *Handler) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/session", h.HandleSignIn)
}

// RegisterRoutes registers the session-bound console routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/session", h.withConsole(h.handleSession))
	mux.HandleFunc("DELETE /api/v1/session", h.withSessionID(h.handleSignOut))
	mux.HandleFunc("GET /api/v1/navigation", h.withConsole(h.handleNavigation))
	mux.HandleFunc("POST /api/v1/access", h.withConsole(h.handleAccess))
	mux.HandleFunc("GET /api/v1/tenants", h.withConsole(h.handleTenants))
	mux.HandleFunc("PUT /api/v1/tenants/current", h.withConsole(h.handleSwitchTenant))
	mux.HandleFunc("POST /api/v1/tenants/refresh", h.withConsole(h.handleRefreshTenants))
	mux.HandleFunc("GET /api/v1/users", h.withConsole(h.handleUsers))
	mux.HandleFunc("GET /api/v1/metrics", h.withConsole(h.handleMetrics))
	mux.HandleFunc("GET /api/v1/settings", h.withConsole(h.handleGetSettings))
	mux.HandleFunc("PUT /api/v1/settings", h.withConsole(h.handleUpdateSettings))
	mux.HandleFunc("GET /api/v1/events", h.withConsole(h.handleEvents))
}

// HandleSignIn authenticates a role/tenant pair through the identity
// provider and issues the session bearer token.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	var req struct {
		Role     string `json:"role"`
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	role, err := policy.ParseRole(req.Role)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	sid, c, err := h.registry.SignIn(r.Context(), role, req.TenantID)
	if err != nil {
		if errors.Is(err, session.ErrSignInFailed) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sign-in failed"})
		return
	}

	token, err := h.tokens.CreateSessionToken(sid, role)
	if err != nil {
		h.registry.Drop(r.Context(), sid)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "issuing session token failed"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":       token,
		"identity":    c.CurrentIdentity(),
		"permissions": policy.PermissionsFor(role),
		"tenant":      c.CurrentTenant(),
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, c *Console) {
	identity := c.CurrentIdentity()
	resp := map[string]any{
		"authenticated": c.IsAuthenticated(),
		"loading":       c.IsSessionLoading() || c.IsTenantLoading(),
		"identity":      identity,
		"tenant":        c.CurrentTenant(),
	}
	if identity != nil {
		resp["permissions"] = policy.PermissionsFor(identity.Role)
		resp["role_label"] = identity.Role.DisplayName()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request, sid string) {
	h.registry.Drop(r.Context(), sid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNavigation(w http.ResponseWriter, r *http.Request, c *Console) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": c.Navigation()})
}

// handleAccess evaluates a navigation request the way the front-end router
// does before rendering a page.
func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request, c *Console) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	var req struct {
		Path          string   `json:"path"`
		RequiredRoles []string `json:"required_roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}

	var required []policy.Role
	for _, raw := range req.RequiredRoles {
		role, err := policy.ParseRole(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		required = append(required, role)
	}

	writeJSON(w, http.StatusOK, c.EvaluateAccess(req.Path, required))
}

func (h *Handler) handleTenants(w http.ResponseWriter, r *http.Request, c *Console) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current":   c.CurrentTenant(),
		"available": c.AvailableTenants(),
		"loading":   c.IsTenantLoading(),
	})
}

func (h *Handler) handleSwitchTenant(w http.ResponseWriter, r *http.Request, c *Console) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	var req struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		return
	}

	t, err := c.SwitchTenant(r.Context(), req.TenantID)
	if err != nil {
		if errors.Is(err, scope.ErrUnauthorized) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, directory.ErrTenantNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "switching tenant failed"})
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleRefreshTenants(w http.ResponseWriter, r *http.Request, c *Console) {
	if err := c.RefreshTenants(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "refreshing tenant catalog failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":   c.CurrentTenant(),
		"available": c.AvailableTenants(),
	})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request, c *Console) {
	tenantID, ok := h.guardedTenant(w, c, "/dashboard/users", nil)
	if !ok {
		return
	}
	users, err := h.registry.dir.ListUsers(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing users failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "tenant_id": tenantID})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request, c *Console) {
	tenantID, ok := h.guardedTenant(w, c, "/dashboard/analytics", nil)
	if !ok {
		return
	}
	metrics, err := h.registry.dir.Metrics(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "fetching metrics failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics, "tenant_id": tenantID})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request, c *Console) {
	tenantID, ok := h.guardedTenant(w, c, "/dashboard/settings", nil)
	if !ok {
		return
	}
	cfg, err := h.registry.dir.GetSettings(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, directory.ErrSettingsNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "fetching settings failed"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request, c *Console) {
	tenantID, ok := h.guardedTenant(w, c, "/dashboard/settings", nil)
	if !ok {
		return
	}

	identity := c.CurrentIdentity()
	if identity == nil || !policy.PermissionsFor(identity.Role).CanEditSettings {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": guard.ReasonUnauthorized})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req struct {
		CompanyName     string `json:"company_name"`
		SupportEmail    string `json:"support_email"`
		Locale          string `json:"locale"`
		NotificationsOn bool   `json:"notifications_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cfg, err := h.registry.dir.UpdateSettings(r.Context(), directory.Settings{
		TenantID:        tenantID,
		CompanyName:     req.CompanyName,
		SupportEmail:    req.SupportEmail,
		Locale:          req.Locale,
		NotificationsOn: req.NotificationsOn,
	})
	if err != nil {
		if errors.Is(err, directory.ErrSettingsNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "updating settings failed"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleEvents streams scope-change events over a websocket so the
// front-end can react to tenant switches and catalog refreshes.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, c *Console) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := c.Events().Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, e); err != nil {
				return
			}
			if e.Type == EventSignedOut {
				return
			}
		}
	}
}

// guardedTenant runs the access guard for routePath and resolves the
// caller's current tenant. It writes the error response and returns
// ok=false when the request must not proceed.
func (h *Handler) guardedTenant(w http.ResponseWriter, c *Console, routePath string, requiredRoles []policy.Role) (string, bool) {
	decision := c.EvaluateAccess(routePath, requiredRoles)
	switch decision.Effect {
	case guard.Allow:
	case guard.Await:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session resolving, retry"})
		return "", false
	default:
		status := http.StatusForbidden
		if decision.Reason == guard.ReasonSignInRequired {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]string{"error": decision.Reason})
		return "", false
	}

	t := c.CurrentTenant()
	if t == nil {
		// Home tenant missing from the catalog: a display state for the
		// front-end, not a server failure.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no tenant resolved"})
		return "", false
	}
	return t.ID, true
}

// withConsole resolves the bearer token to its Console.
func (h *Handler) withConsole(next func(http.ResponseWriter, *http.Request, *Console)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := h.resolve(w, r)
		if !ok {
			return
		}
		next(w, r, c)
	}
}

// withSessionID resolves the bearer token but hands the session id to the
// handler (sign-out needs it to drop the registry entry).
func (h *Handler) withSessionID(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sid, ok := h.resolve(w, r)
		if !ok {
			return
		}
		next(w, r, sid)
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*Console, string, bool) {
	token, err := extractBearerToken(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return nil, "", false
	}
	sid, err := h.tokens.ValidateSessionToken(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
		return nil, "", false
	}
	c, ok := h.registry.Resolve(r.Context(), sid)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": guard.ReasonSignInRequired})
		return nil, "", false
	}
	return c, sid, true
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// The events endpoint is reached by browser WebSocket clients,
		// which cannot set headers; accept the token as a query param there.
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
