package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (a *API) listAdvisors(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"advisors":  advisor.Advisors(),
		"available": a.deps.Advisors != nil,
	})
}

// sessionKey scopes a chat session to the calling user so users cannot read
// each other's conversations
func sessionKey(r *http.Request, sessionID string) string {
	p, _ := auth.FromContext(r.Context())
	return p.UserID + ":" + sessionID
}

// advisorChat sends a message. A new session ID is issued when none is given.
func (a *API) advisorChat(w http.ResponseWriter, r *http.Request) {
	if a.deps.Advisors == nil {
		response.RenderServiceUnavailable(w, "Advisors are not configured")
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	name := advisor.Name(router.PathParam(r, "name"))
	reply, err := a.deps.Advisors.Chat(r.Context(), name, sessionKey(r, req.SessionID), req.Message)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	reply.SessionID = req.SessionID
	response.OK(w, reply)
}

func (a *API) advisorHistory(w http.ResponseWriter, r *http.Request) {
	if a.deps.Advisors == nil {
		response.RenderServiceUnavailable(w, "Advisors are not configured")
		return
	}
	name := advisor.Name(router.PathParam(r, "name"))
	session := router.PathParam(r, "session")
	turns, err := a.deps.Advisors.History(r.Context(), name, sessionKey(r, session))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"advisor": name, "session_id": session, "turns": turns})
}

func (a *API) advisorReset(w http.ResponseWriter, r *http.Request) {
	if a.deps.Advisors == nil {
		response.RenderServiceUnavailable(w, "Advisors are not configured")
		return
	}
	name := advisor.Name(router.PathParam(r, "name"))
	if err := a.deps.Advisors.Reset(r.Context(), name, sessionKey(r, router.PathParam(r, "session"))); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}
