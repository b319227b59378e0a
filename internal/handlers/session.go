package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"recipehub-search/internal/notify"
	"recipehub-search/internal/recipe"
	"recipehub-search/internal/scroll"
	"recipehub-search/internal/search"
	"recipehub-search/internal/session"
	"recipehub-search/internal/social"
	"recipehub-search/pkg/logging/logging"
)

type ctxKey struct{}

// SessionHandler exposes search sessions over HTTP.
type SessionHandler struct {
	Sessions *session.Manager
}

func NewSessionHandler(m *session.Manager) *SessionHandler {
	return &SessionHandler{Sessions: m}
}

type textRequest struct {
	Text string `json:"text"`
}

type snapshotResponse struct {
	ID string `json:"id"`
	search.Snapshot
	Exhausted     bool                  `json:"exhausted"`
	Notifications []notify.Notification `json:"notifications"`
}

type triggerResponse struct {
	Fired     bool `json:"fired"`
	Exhausted bool `json:"exhausted"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Create(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrTooManySessions) {
			status = http.StatusServiceUnavailable
		}
		logging.L(r.Context()).Warn("session_create_failed", zap.Error(err))
		writeError(w, status, "session_unavailable", err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotOf(s))
}

// Load resolves {sessionID} and puts the session into the request context.
func (h *SessionHandler) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		s, ok := h.Sessions.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session_not_found", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, s)
		ctx = logging.WithFields(ctx, zap.String("session_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

// Delete handles DELETE /v1/sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Delete(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// Snapshot handles GET /v1/sessions/{sessionID}. Queued notifications are
// delivered once.
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotOf(sessionFrom(r)))
}

// History handles GET /v1/sessions/{sessionID}/history.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	list, err := sessionFrom(r).Search.History(r.Context())
	if err != nil {
		logging.L(r.Context()).Warn("history_list_failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "history_unavailable", err)
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"history": list})
}

// SetQuery handles PUT /v1/sessions/{sessionID}/query.
func (h *SessionHandler) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, r, sessionFrom(r).Search.SetQuery(req.Text))
}

// SetFilters handles PUT /v1/sessions/{sessionID}/filters.
func (h *SessionHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var f recipe.Filters
	if !decode(w, r, &f) {
		return
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filters", err)
		return
	}
	h.accepted(w, r, sessionFrom(r).Search.SetFilters(f))
}

// Submit handles POST /v1/sessions/{sessionID}/submit.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, sessionFrom(r).Search.Submit())
}

// SelectSuggestion handles POST /v1/sessions/{sessionID}/suggestions/select.
func (h *SessionHandler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, r, sessionFrom(r).Search.SelectSuggestion(req.Text))
}

// Clear handles POST /v1/sessions/{sessionID}/clear.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, sessionFrom(r).Search.Clear())
}

// LoadMore handles POST /v1/sessions/{sessionID}/more.
func (h *SessionHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, r, sessionFrom(r).Search.LoadMore())
}

// Sentinel handles POST /v1/sessions/{sessionID}/sentinel.
func (h *SessionHandler) Sentinel(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	fired, err := s.Scroll.SentinelVisible()
	h.triggered(w, r, s, fired, err)
}

// Scroll handles POST /v1/sessions/{sessionID}/scroll.
func (h *SessionHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	var v scroll.Viewport
	if !decode(w, r, &v) {
		return
	}
	s := sessionFrom(r)
	fired, err := s.Scroll.Scrolled(v)
	h.triggered(w, r, s, fired, err)
}

// Toggle handles POST /v1/sessions/{sessionID}/recipes/{recipeID}/{action}.
// The body is the record after the toggle settled (rolled back on failure).
func (h *SessionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	action := recipe.Action(chi.URLParam(r, "action"))
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, "unknown_action", nil)
		return
	}

	rec, err := sessionFrom(r).Social.Toggle(r.Context(), chi.URLParam(r, "recipeID"), action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, social.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "recipe_not_found", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream_timeout", err)
	default:
		logging.L(r.Context()).Info("toggle_failed",
			zap.String("action", string(action)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, struct {
			errorResponse
			Record recipe.Recipe `json:"record"`
		}{errorResponse{Error: "mutation_failed", Message: err.Error()}, rec})
	}
}

func (h *SessionHandler) accepted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *SessionHandler) triggered(w http.ResponseWriter, r *http.Request, s *session.Session, fired bool, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{Fired: fired, Exhausted: s.Scroll.Exhausted()})
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, search.ErrClosed) {
		writeError(w, http.StatusGone, "session_closed", err)
		return
	}
	logging.L(r.Context()).Warn("session_operation_failed", zap.Error(err))
	writeError(w, http.StatusBadRequest, "invalid_request", err)
}

func snapshotOf(s *session.Session) snapshotResponse {
	notes := s.Notes.Drain()
	if notes == nil {
		notes = []notify.Notification{}
	}
	return snapshotResponse{
		ID:            s.ID,
		Snapshot:      s.Search.Snapshot(),
		Exhausted:     s.Scroll.Exhausted(),
		Notifications: notes,
	}
}

// decode reads a JSON body into v and answers 400/413 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", nil)
			return false
		}
		logging.L(r.Context()).Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	resp := errorResponse{Error: code}
	if err != nil {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}
