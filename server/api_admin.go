package main

import (
	"net/http"
)

// GET /api/admin/system
// Returns capability flags for the admin settings screen
func (a *api) handleAdminSystemStatus(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.AuthorizeMutation(r.Context(), principal(r), ActManageUsers, 0); err != nil {
		a.fail(w, "admin system", err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"db": string(a.store.dialect),
		"brain": map[string]any{
			"configured": a.cfg.Brain.Enabled(),
			"model":      a.cfg.Brain.Model,
		},
		"uploads": map[string]any{
			"max_bytes": a.cfg.MaxUploadBytes,
		},
		"admin_emails": len(a.cfg.AdminEmails),
	})
}
