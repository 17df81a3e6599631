package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) (string, *Store) {
	t.Helper()
	base, a := newTestAPI(t)
	return base, a.store
}

func newTestAPI(t *testing.T) (string, *api) {
	t.Helper()
	e, s := newTestEngine(t, DefaultPolicy())
	cfg := Config{
		SessionCookieName: "taskflow_sess",
		SessionTTL:        time.Hour,
		CookieSameSite:    http.SameSiteLaxMode,
		UploadDir:         filepath.Join(t.TempDir(), "uploads"),
		MaxUploadBytes:    1 << 20,
		AdminEmails:       []string{"admin@example.com"},
	}
	log := quietLogger()
	a := newAPI(cfg, s, e, NewBrain(s, e, &fakeModel{reply: "noted"}, 20, log), log)
	mux := http.NewServeMux()
	a.routes(mux)
	srv := httptest.NewServer(withLogging(log, mux))
	t.Cleanup(srv.Close)
	return srv.URL, a
}

func newClient(t *testing.T, base string) *testClient {
	jar, _ := cookiejar.New(nil)
	return &testClient{t: t, base: base, http: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// do sends body as JSON and decodes the response into out when non-nil.
func (c *testClient) do(method, path string, body, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, c.base+path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *testClient) send(req *http.Request, out any) int {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

func (c *testClient) register(email string) User {
	c.t.Helper()
	var out struct {
		User User `json:"user"`
	}
	if code := c.do("POST", "/api/auth/register", map[string]string{"email": email, "password": "secret123"}, &out); code != 201 {
		c.t.Fatalf("register %s: %d", email, code)
	}
	return out.User
}

type errBody struct {
	OK     bool         `json:"ok"`
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields"`
}

func TestAPIAuthFlow(t *testing.T) {
	base, _ := newTestServer(t)
	c := newClient(t, base)

	var me struct {
		User *User `json:"user"`
	}
	if code := c.do("GET", "/api/auth/me", nil, &me); code != 200 || me.User != nil {
		t.Fatalf("anonymous me: %d %+v", code, me.User)
	}
	if code := c.do("GET", "/api/workspaces", nil, nil); code != 401 {
		t.Fatalf("no session: %d", code)
	}

	admin := c.register("admin@example.com")
	if admin.Role != RoleAdmin || admin.Name != "admin" {
		t.Fatalf("admin = %+v", admin)
	}
	if code := c.do("GET", "/api/auth/me", nil, &me); code != 200 || me.User == nil || me.User.ID != admin.ID {
		t.Fatalf("me after register: %d %+v", code, me.User)
	}

	var eb errBody
	if code := newClient(t, base).do("POST", "/api/auth/register", map[string]string{"email": "admin@example.com", "password": "secret123"}, &eb); code != 400 {
		t.Fatalf("duplicate register: %d", code)
	}

	if code := c.do("POST", "/api/auth/logout", nil, nil); code != 200 {
		t.Fatalf("logout: %d", code)
	}
	if code := c.do("GET", "/api/workspaces", nil, nil); code != 401 {
		t.Fatalf("after logout: %d", code)
	}
	if code := c.do("POST", "/api/auth/login", map[string]string{"email": "admin@example.com", "password": "nope"}, nil); code != 401 {
		t.Fatalf("bad password: %d", code)
	}
	if code := c.do("POST", "/api/auth/login", map[string]string{"email": "ADMIN@example.com", "password": "secret123"}, nil); code != 200 {
		t.Fatalf("login: %d", code)
	}
	if code := c.do("GET", "/api/workspaces", nil, nil); code != 200 {
		t.Fatalf("after login: %d", code)
	}
}

func TestAPIErrorStatuses(t *testing.T) {
	base, _ := newTestServer(t)
	admin := newClient(t, base)
	admin.register("admin@example.com")
	worker := newClient(t, base)
	worker.register("worker@example.com")

	ws := map[string]string{"name": "Design", "color": "#3b82f6", "icon": "palette"}
	var eb errBody
	if code := worker.do("POST", "/api/workspaces", ws, &eb); code != 403 || eb.OK {
		t.Fatalf("worker create workspace: %d %+v", code, eb)
	}

	var created Workspace
	if code := admin.do("POST", "/api/workspaces", ws, &created); code != 201 || created.ID == 0 {
		t.Fatalf("admin create workspace: %d %+v", code, created)
	}

	eb = errBody{}
	if code := admin.do("POST", "/api/tasks", map[string]any{"title": "", "workspace_id": created.ID, "status": "blocked"}, &eb); code != 400 {
		t.Fatalf("bad task: %d", code)
	}
	if len(eb.Fields) != 2 || eb.Fields[0].Field != "title" || eb.Fields[1].Field != "status" {
		t.Fatalf("fields = %+v", eb.Fields)
	}

	if code := admin.do("POST", "/api/tasks", map[string]any{"title": "t", "workspace_id": created.ID, "bogus": 1}, nil); code != 400 {
		t.Fatalf("unknown field: %d", code)
	}
	if code := admin.do("GET", "/api/tasks/9999", nil, nil); code != 404 {
		t.Fatalf("missing task: %d", code)
	}
	if code := admin.do("GET", "/api/tasks/abc", nil, nil); code != 400 {
		t.Fatalf("bad id: %d", code)
	}
	if code := admin.do("GET", "/api/tasks?workspace_id=9999", nil, nil); code != 404 {
		t.Fatalf("tasks of missing workspace: %d", code)
	}
	if code := worker.do("GET", "/api/analytics", nil, nil); code != 403 {
		t.Fatalf("worker analytics: %d", code)
	}
	if code := admin.do("GET", "/api/analytics?from=nope", nil, nil); code != 400 {
		t.Fatalf("bad range: %d", code)
	}
}

func TestAPITaskLifecycle(t *testing.T) {
	base, _ := newTestServer(t)
	admin := newClient(t, base)
	admin.register("admin@example.com")
	worker := newClient(t, base)
	w := worker.register("worker@example.com")

	var ws Workspace
	admin.do("POST", "/api/workspaces", map[string]string{"name": "Ops", "color": "#000000", "icon": "gear"}, &ws)

	var list []TaskDetail
	if code := worker.do("GET", fmt.Sprintf("/api/tasks?workspace_id=%d", ws.ID), nil, &list); code != 200 || len(list) != 0 {
		t.Fatalf("non-member list: %d %d", code, len(list))
	}
	if code := admin.do("POST", fmt.Sprintf("/api/workspaces/%d/members", ws.ID), map[string]string{"user_id": w.ID}, nil); code != 201 {
		t.Fatalf("add member: %d", code)
	}

	var task TaskDetail
	body := map[string]any{"title": "Rotate keys", "workspace_id": ws.ID, "assignee_id": w.ID, "tags": []string{"security"}}
	if code := admin.do("POST", "/api/tasks", body, &task); code != 201 {
		t.Fatalf("create task: %d", code)
	}
	if task.Status != StatusTodo || task.Assignee == nil || task.Assignee.ID != w.ID || task.Workspace == nil {
		t.Fatalf("created = %+v", task)
	}

	if code := worker.do("GET", fmt.Sprintf("/api/tasks?workspace_id=%d", ws.ID), nil, &list); code != 200 || len(list) != 1 {
		t.Fatalf("member list: %d %d", code, len(list))
	}

	var moved TaskDetail
	if code := worker.do("POST", fmt.Sprintf("/api/tasks/%d/move", task.ID), map[string]any{"status": StatusDone, "index": 0}, &moved); code != 200 {
		t.Fatalf("move: %d", code)
	}
	if moved.Status != StatusDone || moved.CompletedAt == nil {
		t.Fatalf("moved = %+v", moved)
	}

	var comment Comment
	if code := worker.do("POST", fmt.Sprintf("/api/tasks/%d/comments", task.ID), map[string]string{"content": "done"}, &comment); code != 201 {
		t.Fatalf("comment: %d", code)
	}
	var comments []Comment
	if code := admin.do("GET", fmt.Sprintf("/api/tasks/%d/comments", task.ID), nil, &comments); code != 200 || len(comments) != 1 {
		t.Fatalf("comments: %d %d", code, len(comments))
	}

	var ok struct {
		OK bool `json:"ok"`
	}
	if code := worker.do("DELETE", fmt.Sprintf("/api/tasks/%d", task.ID), nil, nil); code != 403 {
		t.Fatalf("worker delete: %d", code)
	}
	if code := admin.do("DELETE", fmt.Sprintf("/api/tasks/%d", task.ID), nil, &ok); code != 200 || !ok.OK {
		t.Fatalf("admin delete: %d", code)
	}
	if code := admin.do("GET", fmt.Sprintf("/api/tasks/%d", task.ID), nil, nil); code != 404 {
		t.Fatalf("deleted task: %d", code)
	}
}

func TestAPIAttachments(t *testing.T) {
	base, _ := newTestServer(t)
	admin := newClient(t, base)
	admin.register("admin@example.com")

	var ws Workspace
	admin.do("POST", "/api/workspaces", map[string]string{"name": "Docs", "color": "#ffffff", "icon": "book"}, &ws)
	var task TaskDetail
	admin.do("POST", "/api/tasks", map[string]any{"title": "Spec", "workspace_id": ws.ID}, &task)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = fw.Write([]byte("draft one"))
	_ = mw.Close()
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/api/tasks/%d/attachments", base, task.ID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var att Attachment
	if code := admin.send(req, &att); code != 201 {
		t.Fatalf("upload: %d", code)
	}
	if att.FileName != "notes.txt" || att.FileSize != 9 {
		t.Fatalf("attachment = %+v", att)
	}

	resp, err := admin.http.Get(fmt.Sprintf("%s/api/attachments/%d", base, att.ID))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(data) != "draft one" {
		t.Fatalf("download: %d %q", resp.StatusCode, data)
	}

	var link Attachment
	if code := admin.do("POST", fmt.Sprintf("/api/tasks/%d/links", task.ID), map[string]string{"url": "https://example.com/doc"}, &link); code != 201 {
		t.Fatalf("link: %d", code)
	}
	resp, err = admin.http.Get(fmt.Sprintf("%s/api/attachments/%d", base, link.ID))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://example.com/doc" {
		t.Fatalf("link download: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	var detail TaskDetail
	admin.do("GET", fmt.Sprintf("/api/tasks/%d", task.ID), nil, &detail)
	if len(detail.Attachments) != 2 {
		t.Fatalf("attachments on task = %d", len(detail.Attachments))
	}
}

func TestAPIBrainConversation(t *testing.T) {
	base, _ := newTestServer(t)
	c := newClient(t, base)
	c.register("worker@example.com")

	var conv BrainConversation
	if code := c.do("POST", "/api/brain/conversations", map[string]any{}, &conv); code != 201 {
		t.Fatalf("create conversation: %d", code)
	}
	if code := c.do("POST", fmt.Sprintf("/api/brain/conversations/%d/messages", conv.ID), map[string]string{"content": "plan my week"}, &conv); code != 200 {
		t.Fatalf("send: %d", code)
	}
	if len(conv.Messages) != 2 || conv.Messages[1].Content != "noted" || conv.Title != "plan my week" {
		t.Fatalf("conversation = %+v", conv)
	}

	other := newClient(t, base)
	other.register("other@example.com")
	if code := other.do("GET", fmt.Sprintf("/api/brain/conversations/%d", conv.ID), nil, nil); code != 403 {
		t.Fatalf("other user: %d", code)
	}
}

func TestAPIMoveTaskAcrossWorkspacesNotifiesOldWorkspace(t *testing.T) {
	base, a := newTestAPI(t)
	admin := newClient(t, base)
	admin.register("admin@example.com")

	var from, to Workspace
	admin.do("POST", "/api/workspaces", map[string]string{"name": "From", "color": "#111111", "icon": "a"}, &from)
	admin.do("POST", "/api/workspaces", map[string]string{"name": "To", "color": "#222222", "icon": "b"}, &to)
	var task TaskDetail
	admin.do("POST", "/api/tasks", map[string]any{"title": "Wander", "workspace_id": from.ID}, &task)

	oldCh, cancelOld := a.bus.Subscribe(from.ID)
	defer cancelOld()
	newCh, cancelNew := a.bus.Subscribe(to.ID)
	defer cancelNew()

	var moved TaskDetail
	if code := admin.do("PATCH", fmt.Sprintf("/api/tasks/%d", task.ID), map[string]any{"workspace_id": to.ID}, &moved); code != 200 {
		t.Fatalf("patch: %d", code)
	}
	if moved.WorkspaceID != to.ID {
		t.Fatalf("workspace = %d", moved.WorkspaceID)
	}

	next := func(ch chan []byte) Event {
		t.Helper()
		select {
		case msg := <-ch:
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatal(err)
			}
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
		}
		return Event{}
	}
	if ev := next(oldCh); ev.Type != "task.deleted" || ev.TaskID == nil || *ev.TaskID != task.ID {
		t.Fatalf("old workspace event = %+v", ev)
	}
	if ev := next(newCh); ev.Type != "task.updated" {
		t.Fatalf("new workspace event = %+v", ev)
	}

	// an in-place edit only notifies the current workspace
	admin.do("PATCH", fmt.Sprintf("/api/tasks/%d", task.ID), map[string]any{"title": "Settled"}, nil)
	if ev := next(newCh); ev.Type != "task.updated" {
		t.Fatalf("edit event = %+v", ev)
	}
	select {
	case msg := <-oldCh:
		t.Fatalf("old workspace got %s", msg)
	default:
	}
}
