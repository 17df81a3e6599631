package main

import (
	"net/http"
	"strings"
)

// Auth handlers
func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password, Name string }
	if !a.decode(w, r, &req) {
		return
	}
	in := UserInput{Email: req.Email, Password: req.Password, Name: req.Name, Role: RoleWorker}
	if a.cfg.IsAdminEmail(req.Email) {
		in.Role = RoleAdmin
	}
	if err := in.Validate(); err != nil {
		a.fail(w, "register", err)
		return
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		a.fail(w, "bcrypt", err)
		return
	}
	if in.Name == "" {
		in.Name = strings.SplitN(in.Email, "@", 2)[0]
	}
	u, err := a.store.CreateUser(r.Context(), in.Email, hash, in.Name, in.Role)
	if err != nil {
		a.fail(w, "register", err)
		return
	}
	a.startSession(w, r, u, 201)
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if !a.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		a.fail(w, "login", invalid("email", "email and password required"))
		return
	}
	u, err := a.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if status, _ := httpStatus(err); status == 404 {
			writeError(w, 401, "invalid credentials")
			return
		}
		a.fail(w, "login", err)
		return
	}
	a.startSession(w, r, u, 200)
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request, u User, status int) {
	token, exp, err := a.store.CreateSession(r.Context(), u.ID, a.cfg.SessionTTL)
	if err != nil {
		a.fail(w, "create session", err)
		return
	}
	a.setSessionCookie(w, token, exp)
	writeJSON(w, status, map[string]any{"ok": true, "user": u})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(a.cfg.SessionCookieName); err == nil && c.Value != "" {
		_ = a.store.DeleteSession(r.Context(), c.Value)
	}
	a.clearSessionCookie(w)
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := a.currentUser(r)
	if err != nil {
		// anonymous callers get user: null rather than a 401
		writeJSON(w, 200, map[string]any{"user": nil})
		return
	}
	writeJSON(w, 200, map[string]any{"user": u})
}
