package main

import (
	"net/http"
)

func (a *api) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.ListVisibleWorkspaces(r.Context(), principal(r))
	if err != nil {
		a.fail(w, "list workspaces", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceInput
	if !a.decode(w, r, &req) {
		return
	}
	ws, err := a.engine.CreateWorkspace(r.Context(), principal(r), req)
	if err != nil {
		a.fail(w, "create workspace", err)
		return
	}
	writeJSON(w, 201, ws)
}

func (a *api) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "get workspace", err)
		return
	}
	ws, err := a.engine.GetWorkspace(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "get workspace", err)
		return
	}
	writeJSON(w, 200, ws)
}

// PATCH /api/workspaces/{id}; is_archived toggles archiving
func (a *api) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "update workspace", err)
		return
	}
	var req WorkspacePatch
	if !a.decode(w, r, &req) {
		return
	}
	ws, err := a.engine.UpdateWorkspace(r.Context(), principal(r), id, req)
	if err != nil {
		a.fail(w, "update workspace", err)
		return
	}
	writeJSON(w, 200, ws)
	a.bus.Publish(Event{Type: "workspace.updated", WorkspaceID: id, Payload: ws})
}

func (a *api) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "delete workspace", err)
		return
	}
	if err := a.engine.DeleteWorkspace(r.Context(), principal(r), id); err != nil {
		a.fail(w, "delete workspace", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.bus.Publish(Event{Type: "workspace.deleted", WorkspaceID: id})
}

func (a *api) handleWorkspaceMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "list members", err)
		return
	}
	items, err := a.engine.ListMembers(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "list members", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/workspaces/{id}/members {user_id}
func (a *api) handleAddWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "add member", err)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engine.AddMember(r.Context(), principal(r), id, req.UserID); err != nil {
		a.fail(w, "add member", err)
		return
	}
	writeJSON(w, 201, map[string]any{"ok": true})
}

func (a *api) handleRemoveWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "remove member", err)
		return
	}
	if err := a.engine.RemoveMember(r.Context(), principal(r), id, r.PathValue("uid")); err != nil {
		a.fail(w, "remove member", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// GET /api/workspaces/{id}/events streams task activity as SSE
func (a *api) handleWorkspaceEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "workspace events", err)
		return
	}
	if _, err := a.engine.GetWorkspace(r.Context(), principal(r), id); err != nil {
		a.fail(w, "workspace events", err)
		return
	}
	a.bus.ServeSSE(w, r, id)
}
