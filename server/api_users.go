package main

import (
	"net/http"
)

// GET /api/users?q=
func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.ListUsers(r.Context(), principal(r), r.URL.Query().Get("q"))
	if err != nil {
		a.fail(w, "list users", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/users {email, password, name, role}
func (a *api) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserInput
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.engine.CreateUser(r.Context(), principal(r), req)
	if err != nil {
		a.fail(w, "create user", err)
		return
	}
	writeJSON(w, 201, u)
}

// PATCH /api/users/{id} {name, role}
func (a *api) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UserPatch
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.engine.UpdateUser(r.Context(), principal(r), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, "update user", err)
		return
	}
	writeJSON(w, 200, u)
}

func (a *api) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteUser(r.Context(), principal(r), r.PathValue("id")); err != nil {
		a.fail(w, "delete user", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
