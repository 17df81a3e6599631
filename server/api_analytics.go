package main

import (
	"net/http"
)

// GET /api/analytics?from=&to=
func (a *api) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	// authorize before parsing the range
	if err := a.engine.AuthorizeMutation(r.Context(), p, ActViewAnalytics, 0); err != nil {
		a.fail(w, "analytics", err)
		return
	}
	q := r.URL.Query()
	rng, err := parseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		a.fail(w, "analytics", err)
		return
	}
	s, err := a.engine.ComputeAnalyticsSummary(r.Context(), p, rng)
	if err != nil {
		a.fail(w, "analytics", err)
		return
	}
	writeJSON(w, 200, s)
}
