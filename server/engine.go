package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"
)

// Principal is the caller as seen by the engine. Role comes from the persisted
// user row, never from request input.
type Principal struct {
	UserID string
	Role   Role
}

func principalOf(u User) Principal { return Principal{UserID: u.ID, Role: u.Role} }

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Engine scopes every read to what the principal may see and checks every write
// against the policy before it reaches the store.
type Engine struct {
	store  *Store
	blobs  *BlobStore
	policy Policy
	now    func() time.Time
	log    *slog.Logger
}

func NewEngine(store *Store, blobs *BlobStore, policy Policy, log *slog.Logger) *Engine {
	return &Engine{store: store, blobs: blobs, policy: policy, now: time.Now, log: log}
}

// AuthorizeMutation checks action against the policy. workspaceID is only looked
// at when the rule needs membership; pass 0 for actions not tied to a workspace.
func (e *Engine) AuthorizeMutation(ctx context.Context, p Principal, action Action, workspaceID int64) error {
	member := false
	if p.UserID != "" && !p.IsAdmin() && e.policy.needsMembership(action) && workspaceID > 0 {
		ok, err := e.store.IsWorkspaceMember(ctx, workspaceID, p.UserID)
		if err != nil {
			return upstream("membership", err)
		}
		member = ok
	}
	return e.policy.Decide(p, action, member)
}

func (e *Engine) canSeeWorkspace(ctx context.Context, p Principal, workspaceID int64) (bool, error) {
	if p.IsAdmin() {
		return true, nil
	}
	ok, err := e.store.IsWorkspaceMember(ctx, workspaceID, p.UserID)
	if err != nil {
		return false, upstream("membership", err)
	}
	return ok, nil
}

// Workspaces

// ListVisibleWorkspaces returns every workspace for admins (archived included) and
// only member workspaces for workers, in creation order.
func (e *Engine) ListVisibleWorkspaces(ctx context.Context, p Principal) ([]Workspace, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	memberID := p.UserID
	if p.IsAdmin() {
		memberID = ""
	}
	ws, err := e.store.ListWorkspaces(ctx, memberID)
	return ws, upstream("list workspaces", err)
}

func (e *Engine) GetWorkspace(ctx context.Context, p Principal, id int64) (Workspace, error) {
	if p.UserID == "" {
		return Workspace{}, ErrUnauthenticated
	}
	ws, err := e.store.GetWorkspace(ctx, id)
	if err != nil {
		return Workspace{}, upstream("get workspace", err)
	}
	ok, err := e.canSeeWorkspace(ctx, p, id)
	if err != nil {
		return Workspace{}, err
	}
	if !ok {
		return Workspace{}, ErrForbidden
	}
	return ws, nil
}

func (e *Engine) CreateWorkspace(ctx context.Context, p Principal, in WorkspaceInput) (Workspace, error) {
	if err := e.AuthorizeMutation(ctx, p, ActCreateWorkspace, 0); err != nil {
		return Workspace{}, err
	}
	if err := in.Validate(); err != nil {
		return Workspace{}, err
	}
	ws, err := e.store.CreateWorkspace(ctx, p.UserID, in)
	return ws, upstream("create workspace", err)
}

func (e *Engine) UpdateWorkspace(ctx context.Context, p Principal, id int64, patch WorkspacePatch) (Workspace, error) {
	if err := e.AuthorizeMutation(ctx, p, ActUpdateWorkspace, id); err != nil {
		return Workspace{}, err
	}
	if err := patch.Validate(); err != nil {
		return Workspace{}, err
	}
	if err := e.store.UpdateWorkspace(ctx, id, patch); err != nil {
		return Workspace{}, upstream("update workspace", err)
	}
	ws, err := e.store.GetWorkspace(ctx, id)
	return ws, upstream("get workspace", err)
}

// DeleteWorkspace cascades to tasks, comments and attachments in one transaction,
// then removes attachment blobs from disk.
func (e *Engine) DeleteWorkspace(ctx context.Context, p Principal, id int64) error {
	if err := e.AuthorizeMutation(ctx, p, ActDeleteWorkspace, id); err != nil {
		return err
	}
	paths, err := e.store.DeleteWorkspace(ctx, id)
	if err != nil {
		return upstream("delete workspace", err)
	}
	e.removeBlobs(paths)
	return nil
}

func (e *Engine) ListMembers(ctx context.Context, p Principal, workspaceID int64) ([]WorkspaceMember, error) {
	if _, err := e.GetWorkspace(ctx, p, workspaceID); err != nil {
		return nil, err
	}
	ms, err := e.store.WorkspaceMembers(ctx, workspaceID)
	return ms, upstream("list members", err)
}

func (e *Engine) AddMember(ctx context.Context, p Principal, workspaceID int64, userID string) error {
	if err := e.AuthorizeMutation(ctx, p, ActManageMembers, workspaceID); err != nil {
		return err
	}
	if userID == "" {
		return invalid("user_id", "required")
	}
	if _, err := e.store.GetWorkspace(ctx, workspaceID); err != nil {
		return upstream("get workspace", err)
	}
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return upstream("get user", err)
	}
	return upstream("add member", e.store.AddWorkspaceMember(ctx, workspaceID, userID))
}

func (e *Engine) RemoveMember(ctx context.Context, p Principal, workspaceID int64, userID string) error {
	if err := e.AuthorizeMutation(ctx, p, ActManageMembers, workspaceID); err != nil {
		return err
	}
	return upstream("remove member", e.store.RemoveWorkspaceMember(ctx, workspaceID, userID))
}

// Tasks

// ListVisibleTasks returns enriched tasks. workspaceID 0 means every visible
// workspace. A worker filtering by a workspace they are not in gets what the
// policy's NonMember setting says: an empty list by default.
func (e *Engine) ListVisibleTasks(ctx context.Context, p Principal, workspaceID int64) ([]TaskDetail, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	f := TaskFilter{WorkspaceID: workspaceID}
	if workspaceID != 0 {
		if _, err := e.store.GetWorkspace(ctx, workspaceID); err != nil {
			return nil, upstream("get workspace", err)
		}
		ok, err := e.canSeeWorkspace(ctx, p, workspaceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			if e.policy.NonMember == FilterForbidden {
				return nil, ErrForbidden
			}
			return []TaskDetail{}, nil
		}
	} else if !p.IsAdmin() {
		f.MemberID = p.UserID
	}
	tasks, err := e.store.ListTasks(ctx, f)
	if err != nil {
		return nil, upstream("list tasks", err)
	}
	return e.enrich(ctx, tasks)
}

// GetVisibleTask returns NotFound for a missing task and Forbidden when its
// workspace is hidden from the principal.
func (e *Engine) GetVisibleTask(ctx context.Context, p Principal, id int64) (TaskDetail, error) {
	if p.UserID == "" {
		return TaskDetail{}, ErrUnauthenticated
	}
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, upstream("get task", err)
	}
	ok, err := e.canSeeWorkspace(ctx, p, t.WorkspaceID)
	if err != nil {
		return TaskDetail{}, err
	}
	if !ok {
		return TaskDetail{}, ErrForbidden
	}
	out, err := e.enrich(ctx, []Task{t})
	if err != nil {
		return TaskDetail{}, err
	}
	return out[0], nil
}

// enrich joins workspaces, people, comments and attachments onto tasks at read time.
func (e *Engine) enrich(ctx context.Context, tasks []Task) ([]TaskDetail, error) {
	out := make([]TaskDetail, 0, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}
	wsList, err := e.store.ListWorkspaces(ctx, "")
	if err != nil {
		return nil, upstream("list workspaces", err)
	}
	users, err := e.store.ListUsers(ctx, "", 0)
	if err != nil {
		return nil, upstream("list users", err)
	}
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	comments, err := e.store.CommentsByTasks(ctx, ids)
	if err != nil {
		return nil, upstream("list comments", err)
	}
	atts, err := e.store.AttachmentsByTasks(ctx, ids)
	if err != nil {
		return nil, upstream("list attachments", err)
	}
	wsByID := make(map[int64]*Workspace, len(wsList))
	for i := range wsList {
		wsByID[wsList[i].ID] = &wsList[i]
	}
	userByID := make(map[string]*User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}
	lookup := func(id *string) *User {
		if id == nil {
			return nil
		}
		return userByID[*id]
	}
	for _, t := range tasks {
		d := TaskDetail{
			Task:        t,
			Workspace:   wsByID[t.WorkspaceID],
			Assignee:    lookup(t.AssigneeID),
			Creator:     lookup(t.CreatedBy),
			Comments:    comments[t.ID],
			Attachments: atts[t.ID],
		}
		if d.Comments == nil {
			d.Comments = []Comment{}
		}
		if d.Attachments == nil {
			d.Attachments = []Attachment{}
		}
		out = append(out, d)
	}
	return out, nil
}

func (e *Engine) CreateTask(ctx context.Context, p Principal, in TaskInput) (TaskDetail, error) {
	if err := e.AuthorizeMutation(ctx, p, ActCreateTask, in.WorkspaceID); err != nil {
		return TaskDetail{}, err
	}
	nt, err := in.Parse()
	if err != nil {
		return TaskDetail{}, err
	}
	if _, err := e.store.GetWorkspace(ctx, nt.WorkspaceID); err != nil {
		return TaskDetail{}, upstream("get workspace", err)
	}
	if err := e.checkAssignee(ctx, nt.AssigneeID); err != nil {
		return TaskDetail{}, err
	}
	t, err := e.store.CreateTask(ctx, p.UserID, nt)
	if err != nil {
		return TaskDetail{}, upstream("create task", err)
	}
	return e.detail(ctx, t)
}

// UpdateTask also returns the workspace the task lived in before the update.
func (e *Engine) UpdateTask(ctx context.Context, p Principal, id int64, patch TaskPatch) (TaskDetail, int64, error) {
	cur, err := e.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, 0, upstream("get task", err)
	}
	if err := e.AuthorizeMutation(ctx, p, ActUpdateTask, cur.WorkspaceID); err != nil {
		return TaskDetail{}, 0, err
	}
	ch, err := patch.Parse()
	if err != nil {
		return TaskDetail{}, 0, err
	}
	if ch.WorkspaceID != nil && *ch.WorkspaceID != cur.WorkspaceID {
		if err := e.AuthorizeMutation(ctx, p, ActUpdateTask, *ch.WorkspaceID); err != nil {
			return TaskDetail{}, 0, err
		}
		if _, err := e.store.GetWorkspace(ctx, *ch.WorkspaceID); err != nil {
			return TaskDetail{}, 0, upstream("get workspace", err)
		}
	}
	if err := e.checkAssignee(ctx, ch.AssigneeID); err != nil {
		return TaskDetail{}, 0, err
	}
	t, err := e.store.UpdateTask(ctx, id, ch)
	if err != nil {
		return TaskDetail{}, 0, upstream("update task", err)
	}
	d, err := e.detail(ctx, t)
	return d, cur.WorkspaceID, err
}

func (e *Engine) MoveTask(ctx context.Context, p Principal, id int64, in MoveInput) (TaskDetail, error) {
	cur, err := e.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, upstream("get task", err)
	}
	if err := e.AuthorizeMutation(ctx, p, ActUpdateTask, cur.WorkspaceID); err != nil {
		return TaskDetail{}, err
	}
	if err := in.Validate(); err != nil {
		return TaskDetail{}, err
	}
	t, err := e.store.MoveTask(ctx, id, in.Status, in.Index)
	if err != nil {
		return TaskDetail{}, upstream("move task", err)
	}
	return e.detail(ctx, t)
}

// DeleteTask returns the workspace the task lived in so callers can notify it.
func (e *Engine) DeleteTask(ctx context.Context, p Principal, id int64) (int64, error) {
	if err := e.AuthorizeMutation(ctx, p, ActDeleteTask, 0); err != nil {
		return 0, err
	}
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return 0, upstream("get task", err)
	}
	paths, err := e.store.DeleteTask(ctx, id)
	if err != nil {
		return 0, upstream("delete task", err)
	}
	e.removeBlobs(paths)
	return t.WorkspaceID, nil
}

func (e *Engine) checkAssignee(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := e.store.GetUser(ctx, *id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("assignee_id", "unknown user")
		}
		return upstream("get user", err)
	}
	return nil
}

func (e *Engine) detail(ctx context.Context, t Task) (TaskDetail, error) {
	out, err := e.enrich(ctx, []Task{t})
	if err != nil {
		return TaskDetail{}, err
	}
	return out[0], nil
}

// Comments

func (e *Engine) AddComment(ctx context.Context, p Principal, taskID int64, content string) (Comment, int64, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return Comment{}, 0, upstream("get task", err)
	}
	if err := e.AuthorizeMutation(ctx, p, ActAddComment, t.WorkspaceID); err != nil {
		return Comment{}, 0, err
	}
	content, err = parseComment(content)
	if err != nil {
		return Comment{}, 0, err
	}
	c, err := e.store.AddComment(ctx, taskID, p.UserID, content)
	return c, t.WorkspaceID, upstream("add comment", err)
}

func (e *Engine) ListComments(ctx context.Context, p Principal, taskID int64) ([]Comment, error) {
	d, err := e.GetVisibleTask(ctx, p, taskID)
	if err != nil {
		return nil, err
	}
	return d.Comments, nil
}

// Attachments

func (e *Engine) UploadAttachment(ctx context.Context, p Principal, taskID int64, name, mime string, r io.Reader) (Attachment, int64, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return Attachment{}, 0, upstream("get task", err)
	}
	if err := e.AuthorizeMutation(ctx, p, ActUploadAttachment, t.WorkspaceID); err != nil {
		return Attachment{}, 0, err
	}
	if name == "" {
		return Attachment{}, 0, invalid("file", "required")
	}
	if mime == "" || mime == LinkMimeType {
		mime = "application/octet-stream"
	}
	rel, size, err := e.blobs.Save("tasks/"+strconv.FormatInt(taskID, 10), name, r)
	if errors.Is(err, errTooLarge) {
		return Attachment{}, 0, invalid("file", "too large")
	}
	if err != nil {
		return Attachment{}, 0, upstream("save attachment", err)
	}
	uploader := p.UserID
	a, err := e.store.AddAttachment(ctx, Attachment{TaskID: taskID, UploadedBy: &uploader, FileName: name, FilePath: rel, MimeType: mime, FileSize: size})
	if err != nil {
		e.removeBlobs([]string{rel})
		return Attachment{}, 0, upstream("add attachment", err)
	}
	return a, t.WorkspaceID, nil
}

func (e *Engine) AddLink(ctx context.Context, p Principal, taskID int64, in LinkInput) (Attachment, int64, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return Attachment{}, 0, upstream("get task", err)
	}
	if err := e.AuthorizeMutation(ctx, p, ActUploadAttachment, t.WorkspaceID); err != nil {
		return Attachment{}, 0, err
	}
	name, link, err := in.Parse()
	if err != nil {
		return Attachment{}, 0, err
	}
	uploader := p.UserID
	a, err := e.store.AddAttachment(ctx, Attachment{TaskID: taskID, UploadedBy: &uploader, FileName: name, FilePath: link, MimeType: LinkMimeType})
	return a, t.WorkspaceID, upstream("add link", err)
}

// OpenAttachment returns the attachment row and, for uploaded files, its content.
// The caller closes the returned file.
func (e *Engine) OpenAttachment(ctx context.Context, p Principal, id int64) (Attachment, io.ReadSeekCloser, error) {
	a, err := e.store.GetAttachment(ctx, id)
	if err != nil {
		return Attachment{}, nil, upstream("get attachment", err)
	}
	if _, err := e.GetVisibleTask(ctx, p, a.TaskID); err != nil {
		return Attachment{}, nil, err
	}
	if a.IsLink() {
		return a, nil, nil
	}
	f, err := e.blobs.Open(a.FilePath)
	if err != nil {
		return Attachment{}, nil, upstream("open attachment", err)
	}
	return a, f, nil
}

// Files library

type FileMeta struct {
	Name        string
	MimeType    string
	Category    string
	Description string
}

func (e *Engine) UploadFile(ctx context.Context, p Principal, meta FileMeta, r io.Reader) (File, error) {
	if err := e.AuthorizeMutation(ctx, p, ActUploadFile, 0); err != nil {
		return File{}, err
	}
	if meta.Name == "" {
		return File{}, invalid("file", "required")
	}
	if meta.Category == "" {
		meta.Category = "general"
	}
	if meta.MimeType == "" {
		meta.MimeType = "application/octet-stream"
	}
	rel, size, err := e.blobs.Save("files", meta.Name, r)
	if errors.Is(err, errTooLarge) {
		return File{}, invalid("file", "too large")
	}
	if err != nil {
		return File{}, upstream("save file", err)
	}
	uploader := p.UserID
	f, err := e.store.CreateFile(ctx, File{
		Name: safeName(meta.Name), OriginalName: meta.Name, FilePath: rel, MimeType: meta.MimeType,
		Size: size, Category: meta.Category, Description: meta.Description, UploadedBy: &uploader,
	})
	if err != nil {
		e.removeBlobs([]string{rel})
		return File{}, upstream("create file", err)
	}
	return f, nil
}

func (e *Engine) ListFiles(ctx context.Context, p Principal, category string) ([]File, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	fs, err := e.store.ListFiles(ctx, category)
	return fs, upstream("list files", err)
}

func (e *Engine) OpenFile(ctx context.Context, p Principal, id int64) (File, io.ReadSeekCloser, error) {
	if p.UserID == "" {
		return File{}, nil, ErrUnauthenticated
	}
	f, err := e.store.GetFile(ctx, id)
	if err != nil {
		return File{}, nil, upstream("get file", err)
	}
	rc, err := e.blobs.Open(f.FilePath)
	if err != nil {
		return File{}, nil, upstream("open file", err)
	}
	return f, rc, nil
}

func (e *Engine) DeleteFile(ctx context.Context, p Principal, id int64) error {
	if err := e.AuthorizeMutation(ctx, p, ActDeleteFile, 0); err != nil {
		return err
	}
	f, err := e.store.DeleteFile(ctx, id)
	if err != nil {
		return upstream("delete file", err)
	}
	e.removeBlobs([]string{f.FilePath})
	return nil
}

// Users

// ListUsers is open to any authenticated user so assignee pickers work.
func (e *Engine) ListUsers(ctx context.Context, p Principal, q string) ([]User, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	us, err := e.store.ListUsers(ctx, q, 500)
	return us, upstream("list users", err)
}

func (e *Engine) CreateUser(ctx context.Context, p Principal, in UserInput) (User, error) {
	if err := e.AuthorizeMutation(ctx, p, ActManageUsers, 0); err != nil {
		return User{}, err
	}
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return User{}, upstream("hash password", err)
	}
	u, err := e.store.CreateUser(ctx, in.Email, hash, in.Name, in.Role)
	return u, upstream("create user", err)
}

func (e *Engine) UpdateUser(ctx context.Context, p Principal, id string, patch UserPatch) (User, error) {
	if err := e.AuthorizeMutation(ctx, p, ActManageUsers, 0); err != nil {
		return User{}, err
	}
	if err := patch.Validate(); err != nil {
		return User{}, err
	}
	if patch.Role != nil && id == p.UserID && *patch.Role != RoleAdmin {
		return User{}, invalid("role", "cannot demote yourself")
	}
	if err := e.store.UpdateUser(ctx, id, patch.Name, patch.Role); err != nil {
		return User{}, upstream("update user", err)
	}
	u, err := e.store.GetUser(ctx, id)
	return u, upstream("get user", err)
}

func (e *Engine) DeleteUser(ctx context.Context, p Principal, id string) error {
	if err := e.AuthorizeMutation(ctx, p, ActDeleteUser, 0); err != nil {
		return err
	}
	if id == p.UserID {
		return invalid("id", "cannot delete yourself")
	}
	return upstream("delete user", e.store.DeleteUser(ctx, id))
}

// Analytics

func (e *Engine) ComputeAnalyticsSummary(ctx context.Context, p Principal, rng *DateRange) (AnalyticsSummary, error) {
	if err := e.AuthorizeMutation(ctx, p, ActViewAnalytics, 0); err != nil {
		return AnalyticsSummary{}, err
	}
	tasks, err := e.store.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return AnalyticsSummary{}, upstream("list tasks", err)
	}
	users, err := e.store.ListUsers(ctx, "", 0)
	if err != nil {
		return AnalyticsSummary{}, upstream("list users", err)
	}
	wsList, err := e.store.ListWorkspaces(ctx, "")
	if err != nil {
		return AnalyticsSummary{}, upstream("list workspaces", err)
	}
	return summarize(tasks, users, wsList, rng, e.now()), nil
}

func (e *Engine) removeBlobs(paths []string) {
	for _, p := range paths {
		if err := e.blobs.Remove(p); err != nil {
			e.log.Warn("remove blob", "path", p, "err", err)
		}
	}
}
