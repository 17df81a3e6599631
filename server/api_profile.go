package main

import (
	"net/http"
	"strings"
)

// PATCH /api/me { name }
// Users may rename themselves; role changes go through the admin users API.
func (a *api) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r)
	var req struct {
		Name *string `json:"name"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == nil {
		a.fail(w, "update me", invalid("body", "nothing to update"))
		return
	}
	v := strings.TrimSpace(*req.Name)
	if v == "" {
		a.fail(w, "update me", invalid("name", "required"))
		return
	}
	if err := a.store.UpdateUser(r.Context(), me.ID, &v, nil); err != nil {
		a.fail(w, "update me", err)
		return
	}
	u, err := a.store.GetUser(r.Context(), me.ID)
	if err != nil {
		a.fail(w, "update me", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "user": u})
}
