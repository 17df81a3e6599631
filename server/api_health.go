package main

import (
	"context"
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	db := "ok"
	status := 200
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health ping", "err", err)
		db, status = "down", 503
	}
	writeJSON(w, status, map[string]any{"ok": status == 200, "db": db, "brain": a.cfg.Brain.Enabled(), "ts": time.Now().UTC().Format(time.RFC3339)})
}
