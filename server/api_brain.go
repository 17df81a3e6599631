package main

import (
	"net/http"
)

// GET /api/brain/conversations?archived=1
func (a *api) handleListConversations(w http.ResponseWriter, r *http.Request) {
	items, err := a.brain.List(r.Context(), principal(r), r.URL.Query().Get("archived") == "1")
	if err != nil {
		a.fail(w, "list conversations", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req ConversationInput
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.brain.Create(r.Context(), principal(r), req)
	if err != nil {
		a.fail(w, "create conversation", err)
		return
	}
	writeJSON(w, 201, c)
}

func (a *api) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "get conversation", err)
		return
	}
	c, err := a.brain.Get(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "get conversation", err)
		return
	}
	writeJSON(w, 200, c)
}

func (a *api) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "update conversation", err)
		return
	}
	var req ConversationPatch
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.brain.Update(r.Context(), principal(r), id, req)
	if err != nil {
		a.fail(w, "update conversation", err)
		return
	}
	writeJSON(w, 200, c)
}

func (a *api) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "delete conversation", err)
		return
	}
	if err := a.brain.Delete(r.Context(), principal(r), id); err != nil {
		a.fail(w, "delete conversation", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// POST /api/brain/conversations/{id}/messages {content}
func (a *api) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "send message", err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	c, err := a.brain.Send(r.Context(), principal(r), id, req.Content)
	if err != nil {
		a.fail(w, "send message", err)
		return
	}
	writeJSON(w, 200, c)
}
