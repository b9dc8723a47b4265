package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func (rt *Router) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveSources domain.ActiveSources `json:"active_sources"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := rt.deps.Chat.StartSession(r.Context(), req.ActiveSources)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := rt.deps.Chat.Sessions(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (rt *Router) listMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindPathString(w, r, "session_id")
	if !ok {
		return
	}
	history, err := rt.deps.Chat.History(r.Context(), sessionID)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (rt *Router) askInSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := bindPathString(w, r, "session_id")
	if !ok {
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := rt.deps.Chat.Ask(r.Context(), domain.SessionContext{SessionID: sessionID}, req.Question)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (rt *Router) rateMessage(w http.ResponseWriter, r *http.Request) {
	var messageID int64
	if err := runtime.BindStyledParameterWithOptions("simple", "message_id", chi.URLParam(r, "message_id"), &messageID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ratingID, err := rt.deps.Chat.Rate(r.Context(), messageID, req.Rating, req.Feedback)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"rating_id": ratingID, "message_id": messageID})
}

func (rt *Router) listQAPairs(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pairs, err := rt.deps.Chat.QAPairs(r.Context(), limit)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

func bindPathString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	if err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return value, true
}
