package main

import (
	"net/http"
)

func (a *api) handleTaskComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "list comments", err)
		return
	}
	items, err := a.engine.ListComments(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "list comments", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "add comment", err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, wsID, err := a.engine.AddComment(r.Context(), principal(r), id, req.Content)
	if err != nil {
		a.fail(w, "add comment", err)
		return
	}
	writeJSON(w, 201, c)
	a.bus.Publish(Event{Type: "comment.created", WorkspaceID: wsID, TaskID: &id, Payload: c})
}
