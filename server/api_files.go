package main

import (
	"net/http"
	"strings"
)

// GET /api/files?category=
func (a *api) handleListFiles(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.ListFiles(r.Context(), principal(r), strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		a.fail(w, "list files", err)
		return
	}
	writeJSON(w, 200, items)
}

// POST /api/files (multipart: file, category, description)
func (a *api) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	file, name, mime, ok := a.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()
	meta := FileMeta{
		Name:        name,
		MimeType:    mime,
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	f, err := a.engine.UploadFile(r.Context(), principal(r), meta, file)
	if err != nil {
		a.fail(w, "upload file", err)
		return
	}
	writeJSON(w, 201, f)
}

func (a *api) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "download file", err)
		return
	}
	f, body, err := a.engine.OpenFile(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "download file", err)
		return
	}
	defer body.Close()
	serveBlob(w, r, f.OriginalName, f.MimeType, f.CreatedAt, body)
}

func (a *api) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "delete file", err)
		return
	}
	if err := a.engine.DeleteFile(r.Context(), principal(r), id); err != nil {
		a.fail(w, "delete file", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
