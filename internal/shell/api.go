package shell

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-portal-shell/internal/guard"
	"github.com/FACorreiaa/go-portal-shell/internal/preference"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

// SessionHandler exposes the session store to the login flow and to feature
// modules running in the browser.
type SessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

func NewSessionHandler(store *session.Store, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger.With(slog.String("handler", "session"))}
}

type SessionResponse struct {
	Authenticated bool                 `json:"authenticated"`
	Token         *string              `json:"token"`
	User          *session.UserProfile `json:"user"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	RedirectTo    string               `json:"redirectTo,omitempty"`
}

type LoginRequest struct {
	Token string               `json:"token"`
	User  *session.UserProfile `json:"user"`
}

type UpdateUserRequest struct {
	User *session.UserProfile `json:"user"`
}

func (h *SessionHandler) snapshot() SessionResponse {
	st := h.store.Snapshot()
	resp := SessionResponse{Authenticated: st.IsAuthenticated(), Token: st.Token, User: st.User}
	if st.Token != nil {
		if exp, ok := session.TokenExpiry(*st.Token); ok {
			resp.ExpiresAt = &exp
		}
	}
	return resp
}

// Get returns the current session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, r, http.StatusOK, h.snapshot())
}

// Login stores a token and profile obtained from the identity backend.
// The response carries the remembered location (?from=) the login page
// should continue to.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.User == nil || req.User.Username == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "token and user.username are required")
		return
	}
	if err := h.store.Login(req.Token, *req.User); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, "token and user.username are required")
		return
	}

	resp := h.snapshot()
	resp.RedirectTo = guard.ReturnPath(r.URL.Query())
	WriteJSONResponse(w, r, http.StatusOK, resp)
}

// UpdateUser replaces the profile and keeps the token.
func (h *SessionHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.User == nil || req.User.Username == "" {
		ErrorResponse(w, r, http.StatusBadRequest, "user.username is required")
		return
	}
	h.store.UpdateUser(*req.User)
	WriteJSONResponse(w, r, http.StatusOK, h.snapshot())
}

// Logout clears the session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout()
	WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

type PreferenceResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Persisted bool   `json:"persisted"`
}

type PreferenceRequest struct {
	Value string `json:"value"`
}

// PreferenceHandler serves one preference store.
type PreferenceHandler[T ~string] struct {
	key   string
	store *preference.Store[T]
}

func NewPreferenceHandler[T ~string](key string, store *preference.Store[T]) *PreferenceHandler[T] {
	return &PreferenceHandler[T]{key: key, store: store}
}

func (h *PreferenceHandler[T]) respond(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, r, http.StatusOK, PreferenceResponse{
		Key:       h.key,
		Value:     string(h.store.Get()),
		Persisted: h.store.Persisted(),
	})
}

func (h *PreferenceHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)
}

func (h *PreferenceHandler[T]) Set(w http.ResponseWriter, r *http.Request) {
	var req PreferenceRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.Set(req.Value); err != nil {
		var invalid *preference.InvalidValueError
		if errors.As(err, &invalid) {
			ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ErrorResponse(w, r, http.StatusInternalServerError, "failed to set preference")
		return
	}
	h.respond(w, r)
}

func (h *PreferenceHandler[T]) Toggle(w http.ResponseWriter, r *http.Request) {
	h.store.Toggle()
	h.respond(w, r)
}

// ModulesHandler reports and resets module load states.
type ModulesHandler struct {
	registry *router.Registry
}

func NewModulesHandler(reg *router.Registry) *ModulesHandler {
	return &ModulesHandler{registry: reg}
}

type ModuleResponse struct {
	Module string `json:"module"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

func (h *ModulesHandler) moduleResponse(key string) ModuleResponse {
	st := h.registry.State(key)
	resp := ModuleResponse{Module: key, State: st.State.String()}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

func (h *ModulesHandler) List(w http.ResponseWriter, r *http.Request) {
	keys := h.registry.Keys()
	out := make([]ModuleResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.moduleResponse(k))
	}
	WriteJSONResponse(w, r, http.StatusOK, out)
}

// Reset moves a failed module back to not requested.
func (h *ModulesHandler) Reset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "module")
	if !h.registry.Reset(key) {
		ErrorResponse(w, r, http.StatusConflict, "module "+key+" is not in a failed state")
		return
	}
	WriteJSONResponse(w, r, http.StatusOK, h.moduleResponse(key))
}
