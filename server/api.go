package main

import (
	"net/http"
	"time"
)

func (a *api) routes(mux *http.ServeMux) {
	// Auth endpoints
	mux.HandleFunc("POST /api/auth/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/auth/me", a.handleMe)
	mux.HandleFunc("PATCH /api/me", a.requireAuth(a.handleUpdateMe))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/workspaces", a.requireAuth(a.handleListWorkspaces))
	mux.HandleFunc("POST /api/workspaces", a.requireAuth(a.handleCreateWorkspace))
	mux.HandleFunc("GET /api/workspaces/{id}", a.requireAuth(a.handleGetWorkspace))
	mux.HandleFunc("PATCH /api/workspaces/{id}", a.requireAuth(a.handleUpdateWorkspace))
	mux.HandleFunc("DELETE /api/workspaces/{id}", a.requireAuth(a.handleDeleteWorkspace))
	mux.HandleFunc("GET /api/workspaces/{id}/events", a.requireAuth(a.handleWorkspaceEvents))
	mux.HandleFunc("GET /api/workspaces/{id}/members", a.requireAuth(a.handleWorkspaceMembers))
	mux.HandleFunc("POST /api/workspaces/{id}/members", a.requireAuth(a.handleAddWorkspaceMember))
	mux.HandleFunc("DELETE /api/workspaces/{id}/members/{uid}", a.requireAuth(a.handleRemoveWorkspaceMember))

	mux.HandleFunc("GET /api/tasks", a.requireAuth(a.handleListTasks))
	mux.HandleFunc("POST /api/tasks", a.requireAuth(a.handleCreateTask))
	mux.HandleFunc("GET /api/tasks/{id}", a.requireAuth(a.handleGetTask))
	mux.HandleFunc("PATCH /api/tasks/{id}", a.requireAuth(a.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", a.requireAuth(a.handleDeleteTask))
	mux.HandleFunc("POST /api/tasks/{id}/move", a.requireAuth(a.handleMoveTask))

	mux.HandleFunc("GET /api/tasks/{id}/comments", a.requireAuth(a.handleTaskComments))
	mux.HandleFunc("POST /api/tasks/{id}/comments", a.requireAuth(a.handleAddComment))
	mux.HandleFunc("POST /api/tasks/{id}/attachments", a.requireAuth(a.handleUploadAttachment))
	mux.HandleFunc("POST /api/tasks/{id}/links", a.requireAuth(a.handleAddLink))
	mux.HandleFunc("GET /api/attachments/{id}", a.requireAuth(a.handleDownloadAttachment))

	// Data library
	mux.HandleFunc("GET /api/files", a.requireAuth(a.handleListFiles))
	mux.HandleFunc("POST /api/files", a.requireAuth(a.handleUploadFile))
	mux.HandleFunc("GET /api/files/{id}", a.requireAuth(a.handleDownloadFile))
	mux.HandleFunc("DELETE /api/files/{id}", a.requireAuth(a.handleDeleteFile))

	// Users (list is open to members for assignee pickers; writes are admin-only)
	mux.HandleFunc("GET /api/users", a.requireAuth(a.handleListUsers))
	mux.HandleFunc("POST /api/users", a.requireAuth(a.handleCreateUser))
	mux.HandleFunc("PATCH /api/users/{id}", a.requireAuth(a.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}", a.requireAuth(a.handleDeleteUser))

	mux.HandleFunc("GET /api/analytics", a.requireAuth(a.handleAnalytics))
	mux.HandleFunc("GET /api/admin/system", a.requireAuth(a.handleAdminSystemStatus))

	// Brain
	mux.HandleFunc("GET /api/brain/conversations", a.requireAuth(a.handleListConversations))
	mux.HandleFunc("POST /api/brain/conversations", a.requireAuth(a.handleCreateConversation))
	mux.HandleFunc("GET /api/brain/conversations/{id}", a.requireAuth(a.handleGetConversation))
	mux.HandleFunc("PATCH /api/brain/conversations/{id}", a.requireAuth(a.handleUpdateConversation))
	mux.HandleFunc("DELETE /api/brain/conversations/{id}", a.requireAuth(a.handleDeleteConversation))
	mux.HandleFunc("POST /api/brain/conversations/{id}/messages", a.requireAuth(a.handleSendMessage))
}
