package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/solvane/phonefleet-console/pkg/api"
	"github.com/solvane/phonefleet-console/pkg/cache"
	"github.com/solvane/phonefleet-console/pkg/config"
	"github.com/solvane/phonefleet-console/pkg/feed"
	"github.com/solvane/phonefleet-console/pkg/ops"
	"github.com/solvane/phonefleet-console/pkg/store"
)

const (
	sessionName = "phonefleet_console"

	// massActionTimeout bounds a detached mass-action run.
	massActionTimeout = 5 * time.Minute
)

type WebRouter struct {
	config       config.Configuration
	apiClient    *api.Client
	lists        *cache.Lists
	feedState    *feed.State
	coordinator  *ops.Coordinator
	storage      store.Stores
	sessionStore *sessions.CookieStore
	Notifier     *UpdateNotifier
}

func (wr *WebRouter) getSession(r *http.Request) (*sessions.Session, error) {
	return wr.sessionStore.Get(r, sessionName)
}

func (wr *WebRouter) Initialize(cfg config.Configuration, client *api.Client, lists *cache.Lists, feedState *feed.State, coordinator *ops.Coordinator, storage store.Stores, notifier *UpdateNotifier) error {
	wr.config = cfg
	wr.apiClient = client
	wr.lists = lists
	wr.feedState = feedState
	wr.coordinator = coordinator
	wr.storage = storage
	wr.Notifier = notifier
	wr.sessionStore = sessions.NewCookieStore([]byte(cfg.SessionSecret))
	wr.sessionStore.Options.HttpOnly = true

	return wr.handleRequests(cfg.ListenAddr)
}

func (wr *WebRouter) handleRequests(listenAddr string) error {
	myRouter := mux.NewRouter().StrictSlash(true)

	myRouter.HandleFunc("/api/login", wr.login).Methods("POST")
	myRouter.HandleFunc("/auth/logout", wr.logout)
	myRouter.HandleFunc("/api/phones", wr.getPhones).Methods("GET")
	myRouter.HandleFunc("/api/phones-sse", wr.phonesSSE).Methods("GET")
	myRouter.HandleFunc("/api/phones/actions", wr.runMassAction).Methods("POST")
	myRouter.HandleFunc("/api/phones/{id}", wr.updatePhone).Methods("PATCH")
	myRouter.HandleFunc("/api/phones/{id}", wr.deletePhone).Methods("DELETE")
	myRouter.HandleFunc("/api/groups", wr.getGroups).Methods("GET")
	myRouter.HandleFunc("/api/groups", wr.createGroup).Methods("POST")
	myRouter.HandleFunc("/api/groups/{id}", wr.deleteGroup).Methods("DELETE")
	myRouter.HandleFunc("/api/servers/telemetry", wr.getTelemetry).Methods("GET")
	myRouter.HandleFunc("/r/{code}", wr.referralVisit).Methods("GET")

	myRouter.Use(handlers.ProxyHeaders)
	myRouter.Use(RequestLogger)
	h := handlers.RecoveryHandler()

	return http.ListenAndServe(listenAddr, h(myRouter))
}

func RequestLogger(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		slog.Info("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr, "user_agent", r.UserAgent())
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// authorized reports whether the request carries a signed-in console session
// that is still backed by a live upstream token. A 401 from upstream clears
// the upstream session, which fails this check until the next login.
func (wr *WebRouter) authorized(r *http.Request) bool {
	session, err := wr.getSession(r)
	if err != nil {
		return false
	}
	signedIn, _ := session.Values["authenticated"].(bool)
	return signedIn && wr.apiClient.Session().Authenticated()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// upstreamError maps client errors onto console responses. Only validation
// and transport problems reach here; mass-action partial failures are
// carried inside the aggregate result instead.
func (wr *WebRouter) upstreamError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		http.Error(w, apiErr.Message, apiErr.Status)
	default:
		slog.Error("upstream call failed", "error", err)
		http.Error(w, "Upstream unavailable", http.StatusBadGateway)
	}
}

func (wr *WebRouter) getPhones(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resp, err := wr.mergedPhones(r.Context())
	if err != nil {
		wr.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (wr *WebRouter) getGroups(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	groups, err := wr.lists.Groups(r.Context())
	if err != nil {
		wr.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (wr *WebRouter) updatePhone(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var upd api.PhoneUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := wr.apiClient.UpdatePhone(r.Context(), mux.Vars(r)["id"], upd); err != nil {
		wr.upstreamError(w, err)
		return
	}
	wr.lists.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (wr *WebRouter) deletePhone(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := wr.apiClient.DeletePhone(r.Context(), mux.Vars(r)["id"]); err != nil {
		wr.upstreamError(w, err)
		return
	}
	wr.lists.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type createGroupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (wr *WebRouter) createGroup(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Group name is required", http.StatusBadRequest)
		return
	}
	group, err := wr.apiClient.CreateGroup(r.Context(), req.Name, req.Color)
	if err != nil {
		wr.upstreamError(w, err)
		return
	}
	wr.lists.Invalidate()
	writeJSON(w, http.StatusCreated, group)
}

func (wr *WebRouter) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := wr.apiClient.DeleteGroup(r.Context(), mux.Vars(r)["id"]); err != nil {
		wr.upstreamError(w, err)
		return
	}
	wr.lists.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (wr *WebRouter) runMassAction(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ops.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	// A started action runs to completion even if the operator closes the
	// tab: cancelling a set-group between the removals and the terminal add
	// would strand phones with no group at all.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), massActionTimeout)
	defer cancel()

	outcome, err := wr.coordinator.Run(ctx, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Kind == ops.KindExport && outcome.Result.Failed == 0 {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="credentials-export.txt"`)
		w.Write([]byte(outcome.Export))
		return
	}
	writeJSON(w, http.StatusOK, outcome.Result)
}

func (wr *WebRouter) getTelemetry(w http.ResponseWriter, r *http.Request) {
	if !wr.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	serverID := query.Get("server_id")
	if serverID == "" {
		latest, err := wr.storage.Telemetry.LatestPerServer()
		if err != nil {
			slog.Error("error fetching latest telemetry", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"samples": latest})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := query.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	samples, err := wr.storage.Telemetry.SamplesSince(serverID, since)
	if err != nil {
		slog.Error("error fetching telemetry history", "error", err, "server_id", serverID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

// referralVisit fires the best-effort tracking ping and forwards the visitor
// to the upstream sign-up page. Tracking failures never affect the redirect.
func (wr *WebRouter) referralVisit(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	go wr.apiClient.TrackReferral(context.WithoutCancel(r.Context()), code)

	http.Redirect(w, r, wr.config.Upstream.BaseURL+"/signup?ref="+code, http.StatusFound)
}
