package main

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// POST /api/tasks/{id}/attachments (multipart, field "file")
func (a *api) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "upload attachment", err)
		return
	}
	file, name, mime, ok := a.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()
	att, wsID, err := a.engine.UploadAttachment(r.Context(), principal(r), id, name, mime, file)
	if err != nil {
		a.fail(w, "upload attachment", err)
		return
	}
	writeJSON(w, 201, att)
	a.bus.Publish(Event{Type: "attachment.created", WorkspaceID: wsID, TaskID: &id, Payload: att})
}

// POST /api/tasks/{id}/links {url, name}
func (a *api) handleAddLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "add link", err)
		return
	}
	var req LinkInput
	if !a.decode(w, r, &req) {
		return
	}
	att, wsID, err := a.engine.AddLink(r.Context(), principal(r), id, req)
	if err != nil {
		a.fail(w, "add link", err)
		return
	}
	writeJSON(w, 201, att)
	a.bus.Publish(Event{Type: "attachment.created", WorkspaceID: wsID, TaskID: &id, Payload: att})
}

// GET /api/attachments/{id}: file download, or a redirect for link attachments
func (a *api) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, "download attachment", err)
		return
	}
	att, body, err := a.engine.OpenAttachment(r.Context(), principal(r), id)
	if err != nil {
		a.fail(w, "download attachment", err)
		return
	}
	if att.IsLink() {
		http.Redirect(w, r, att.URL, http.StatusFound)
		return
	}
	defer body.Close()
	serveBlob(w, r, att.FileName, att.MimeType, att.CreatedAt, body)
}

// formFile pulls the "file" part out of a multipart request within the upload limit.
func (a *api) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.fail(w, "upload", invalid("file", "invalid multipart body"))
		return nil, "", "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.fail(w, "upload", invalid("file", "required"))
		return nil, "", "", false
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return file, header.Filename, mime, true
}

func serveBlob(w http.ResponseWriter, r *http.Request, name, mime string, mod time.Time, body io.ReadSeeker) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", mime)
	http.ServeContent(w, r, name, mod, body)
}
