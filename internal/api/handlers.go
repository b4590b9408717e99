// Package api exposes the dashboard data service over a localhost HTTP API.
// This is the contract the web UI (and the CLI) consume; every route maps
// onto one atomic service operation.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/freevibes/internal/dashboard"
	"github.com/kalambet/freevibes/internal/gist"
	"github.com/kalambet/freevibes/internal/rss"
)

// Deps holds the collaborators the HTTP layer delegates to.
type Deps struct {
	Service *dashboard.Service
	Feeds   *rss.Fetcher
	// Token guards the management API; requests must carry it as a bearer
	// token.
	Token string
}

// NewHandler builds the router for the whole dashboard API. Every route
// except /health requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	top := chi.NewRouter()
	top.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r := chi.NewRouter()
	r.Use(bearerAuth(deps.Token))

	r.Get("/data", handleGetData(deps))
	r.Put("/data", handlePutData(deps))
	r.Post("/data/reload", handleReload(deps))

	r.Post("/login", handleLogin(deps))
	r.Post("/logout", handleLogout(deps))
	r.Get("/remote", handleRemote(deps))

	r.Patch("/settings", handlePatchSettings(deps))

	r.Post("/widgets", handleAddWidget(deps))
	r.Put("/widgets/{id}", handleUpdateWidget(deps))
	r.Delete("/widgets/{id}", handleDeleteWidget(deps))
	r.Post("/widgets/{id}/move", handleMoveWidget(deps))

	r.Post("/tabs", handleAddTab(deps))
	r.Patch("/tabs/{id}", handleRenameTab(deps))
	r.Delete("/tabs/{id}", handleDeleteTab(deps))
	r.Post("/tabs/{id}/select", handleSelectTab(deps))
	r.Post("/tabs/{id}/move", handleMoveTab(deps))

	r.Get("/feed", handleGetFeed(deps))
	r.Post("/feed/discover", handleDiscoverFeed(deps))

	r.Get("/events", handleEvents(deps))

	top.Mount("/", r)
	return top
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func handleGetData(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := deps.Service.Data()
		if !ok {
			doc = deps.Service.LoadData(r.Context())
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// handlePutData replaces the whole document. The service boundary has no
// partial-patch semantics: the UI always sends the full new document.
func handlePutData(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc dashboard.DashboardData
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid document: %v", err)
			return
		}
		if err := deps.Service.SaveData(r.Context(), doc); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "saving document: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Service.LoadData(r.Context()))
	}
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "token is required")
			return
		}
		if err := deps.Service.LoginWithRemoteToken(r.Context(), req.Token); err != nil {
			if errors.Is(err, gist.ErrAuthentication) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "login failed: %v", err)
				return
			}
			httpError(w, http.StatusBadGateway, "remote_error", "login failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enabled": true,
			"url":     deps.Service.RemoteDocumentURL(),
		})
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Service.Logout()
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRemote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"enabled": deps.Service.IsRemoteSyncEnabled(),
			"url":     deps.Service.RemoteDocumentURL(),
		})
	}
}

func handlePatchSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch dashboard.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid settings patch: %v", err)
			return
		}
		if err := deps.Service.UpdateSettings(r.Context(), patch); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "updating settings: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddWidget(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var widget dashboard.Widget
		if err := json.NewDecoder(r.Body).Decode(&widget); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid widget: %v", err)
			return
		}
		added, err := deps.Service.AddWidget(r.Context(), widget)
		if err != nil {
			if errors.Is(err, dashboard.ErrTabNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	}
}

func handleUpdateWidget(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var widget dashboard.Widget
		if err := json.NewDecoder(r.Body).Decode(&widget); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid widget: %v", err)
			return
		}
		widget.ID = chi.URLParam(r, "id")
		// Unknown ids are a silent no-op: the widget may have been deleted
		// by a concurrent caller.
		if err := deps.Service.UpdateWidget(r.Context(), widget); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "updating widget: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteWidget(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.DeleteWidget(r.Context(), chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "deleting widget: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMoveWidget(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Column int `json:"column"`
			Index  int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid move: %v", err)
			return
		}
		if err := deps.Service.MoveWidget(r.Context(), chi.URLParam(r, "id"), req.Column, req.Index); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "moving widget: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		tab, err := deps.Service.AddTab(r.Context(), req.Name)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "adding tab: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, tab)
	}
}

func handleRenameTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if err := deps.Service.RenameTab(r.Context(), chi.URLParam(r, "id"), req.Name); err != nil {
			if errors.Is(err, dashboard.ErrTabNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "storage_error", "renaming tab: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Service.DeleteTab(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, dashboard.ErrLastTab):
			httpError(w, http.StatusConflict, "invalid_request_error", "%v", err)
		case errors.Is(err, dashboard.ErrTabNotFound):
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
		case err != nil:
			httpError(w, http.StatusInternalServerError, "storage_error", "deleting tab: %v", err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func handleSelectTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.SelectTab(r.Context(), chi.URLParam(r, "id")); err != nil {
			if errors.Is(err, dashboard.ErrTabNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "storage_error", "selecting tab: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMoveTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid move: %v", err)
			return
		}
		if err := deps.Service.MoveTab(r.Context(), chi.URLParam(r, "id"), req.Index); err != nil {
			if errors.Is(err, dashboard.ErrTabNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "storage_error", "moving tab: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetFeed(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedURL := r.URL.Query().Get("url")
		if feedURL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url query parameter is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Feeds.Fetch(r.Context(), feedURL))
	}
}

func handleDiscoverFeed(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}
		feedURL, err := rss.DiscoverFeedURL(r.Context(), req.URL)
		if err != nil {
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"feedUrl": feedURL})
	}
}
