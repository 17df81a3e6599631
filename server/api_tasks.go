package main

import (
	"net/http"
)

// GET /api/tasks?workspace_id=
func (a *api) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var wsID int64
	if v := r.URL.Query().Get("workspace_id"); v != "" {
		id, err := parseID(v)
		if err != nil || id <= 0 {
			a.fail(w, "list tasks", invalid("workspace_id", "bad id"))
			return
		}
		wsID = id
	}
	items, err := a.engine.ListVisibleTasks(r.Context(), principal(r), wsID)
	if err != nil {
		a.fail(w, "list tasks", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskInput
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.engine.CreateTask(r.Context(), principal(r), req)
	if err != nil {
		a.fail(w, "create task", err)
		return
	}
	writeJSON(w, 201, t)
	a.bus.Publish(Event{Type: "task.created", WorkspaceID: t.WorkspaceID, TaskID: &t.ID, Payload: t})
}

func (a *api) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "get task", err)
		return
	}
	t, err := a.engine.GetVisibleTask(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "get task", err)
		return
	}
	writeJSON(w, 200, t)
}

func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "update task", err)
		return
	}
	var req TaskPatch
	if !a.decode(w, r, &req) {
		return
	}
	t, prevWS, err := a.engine.UpdateTask(r.Context(), principal(r), id, req)
	if err != nil {
		a.fail(w, "update task", err)
		return
	}
	writeJSON(w, 200, t)
	if prevWS != t.WorkspaceID {
		// the card leaves the old board
		a.bus.Publish(Event{Type: "task.deleted", WorkspaceID: prevWS, TaskID: &t.ID})
	}
	a.bus.Publish(Event{Type: "task.updated", WorkspaceID: t.WorkspaceID, TaskID: &t.ID, Payload: t})
}

// POST /api/tasks/{id}/move {status, index}
func (a *api) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "move task", err)
		return
	}
	var req MoveInput
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.engine.MoveTask(r.Context(), principal(r), id, req)
	if err != nil {
		a.fail(w, "move task", err)
		return
	}
	writeJSON(w, 200, t)
	a.bus.Publish(Event{Type: "task.moved", WorkspaceID: t.WorkspaceID, TaskID: &t.ID, Payload: map[string]any{"status": t.Status, "pos": t.Pos}})
}

func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "delete task", err)
		return
	}
	wsID, err := a.engine.DeleteTask(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "delete task", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.bus.Publish(Event{Type: "task.deleted", WorkspaceID: wsID, TaskID: &id})
}
