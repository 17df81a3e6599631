package main

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxWorkspaceName = 100
	maxTaskTitle     = 200
	maxCommentLen    = 10000
	minPasswordLen   = 6
)

// Request bodies are decoded into these types and validated once at the boundary.
// Store methods take the parsed results and never re-check them.

type WorkspaceInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

func (in *WorkspaceInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Color = strings.TrimSpace(in.Color)
	in.Icon = strings.TrimSpace(in.Icon)
	ve := &ValidationError{}
	checkLen(ve, "name", in.Name, maxWorkspaceName)
	if in.Color == "" {
		ve.add("color", "required")
	}
	if in.Icon == "" {
		ve.add("icon", "required")
	}
	return ve.orNil()
}

type WorkspacePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	IsArchived  *bool   `json:"is_archived"`
}

func (p *WorkspacePatch) Validate() error {
	ve := &ValidationError{}
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		checkLen(ve, "name", v, maxWorkspaceName)
		p.Name = &v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		p.Description = &v
	}
	if p.Color != nil {
		v := strings.TrimSpace(*p.Color)
		if v == "" {
			ve.add("color", "required")
		}
		p.Color = &v
	}
	if p.Icon != nil {
		v := strings.TrimSpace(*p.Icon)
		if v == "" {
			ve.add("icon", "required")
		}
		p.Icon = &v
	}
	if p.Name == nil && p.Description == nil && p.Color == nil && p.Icon == nil && p.IsArchived == nil {
		ve.add("body", "nothing to update")
	}
	return ve.orNil()
}

type TaskInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	WorkspaceID    int64    `json:"workspace_id"`
	AssigneeID     *string  `json:"assignee_id"`
	DueDate        *string  `json:"due_date"`
	Tags           []string `json:"tags"`
	Links          []string `json:"links"`
	EstimatedHours *float64 `json:"estimated_hours"`
	ActualHours    *float64 `json:"actual_hours"`
}

// NewTask is a validated TaskInput.
type NewTask struct {
	WorkspaceID    int64
	Title          string
	Description    string
	Status         string
	Priority       string
	AssigneeID     *string
	DueDate        *time.Time
	Tags           []string
	Links          []string
	EstimatedHours *float64
	ActualHours    *float64
}

func (in TaskInput) Parse() (NewTask, error) {
	ve := &ValidationError{}
	t := NewTask{
		WorkspaceID:    in.WorkspaceID,
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Status:         in.Status,
		Priority:       in.Priority,
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
	}
	checkLen(ve, "title", t.Title, maxTaskTitle)
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !validStatus(t.Status) {
		ve.add("status", "must be one of todo, in-progress, done")
	}
	if !validPriority(t.Priority) {
		ve.add("priority", "must be one of low, medium, high")
	}
	if t.WorkspaceID <= 0 {
		ve.add("workspace_id", "required")
	}
	if in.AssigneeID != nil {
		if v := strings.TrimSpace(*in.AssigneeID); v != "" {
			t.AssigneeID = &v
		}
	}
	if in.DueDate != nil && strings.TrimSpace(*in.DueDate) != "" {
		d, err := parseDate(*in.DueDate)
		if err != nil {
			ve.add("due_date", "must be an ISO-8601 date")
		} else {
			t.DueDate = &d
		}
	}
	t.Tags = checkTags(ve, in.Tags)
	t.Links = checkLinks(ve, in.Links)
	checkHours(ve, "estimated_hours", in.EstimatedHours)
	checkHours(ve, "actual_hours", in.ActualHours)
	if err := ve.orNil(); err != nil {
		return NewTask{}, err
	}
	return t, nil
}

type TaskPatch struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Status         *string   `json:"status"`
	Priority       *string   `json:"priority"`
	WorkspaceID    *int64    `json:"workspace_id"`
	AssigneeID     *string   `json:"assignee_id"`
	DueDate        *string   `json:"due_date"`
	Tags           *[]string `json:"tags"`
	Links          *[]string `json:"links"`
	EstimatedHours *float64  `json:"estimated_hours"`
	ActualHours    *float64  `json:"actual_hours"`
}

// TaskChanges is a validated TaskPatch. An empty assignee_id or due_date clears the field.
type TaskChanges struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	WorkspaceID    *int64
	AssigneeID     *string
	ClearAssignee  bool
	DueDate        *time.Time
	ClearDueDate   bool
	Tags           *[]string
	Links          *[]string
	EstimatedHours *float64
	ActualHours    *float64
}

func (p TaskPatch) Parse() (TaskChanges, error) {
	ve := &ValidationError{}
	ch := TaskChanges{
		Status:         p.Status,
		Priority:       p.Priority,
		WorkspaceID:    p.WorkspaceID,
		EstimatedHours: p.EstimatedHours,
		ActualHours:    p.ActualHours,
	}
	if p.Title != nil {
		v := strings.TrimSpace(*p.Title)
		checkLen(ve, "title", v, maxTaskTitle)
		ch.Title = &v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		ch.Description = &v
	}
	if p.Status != nil && !validStatus(*p.Status) {
		ve.add("status", "must be one of todo, in-progress, done")
	}
	if p.Priority != nil && !validPriority(*p.Priority) {
		ve.add("priority", "must be one of low, medium, high")
	}
	if p.WorkspaceID != nil && *p.WorkspaceID <= 0 {
		ve.add("workspace_id", "must be a positive id")
	}
	if p.AssigneeID != nil {
		if v := strings.TrimSpace(*p.AssigneeID); v == "" {
			ch.ClearAssignee = true
		} else {
			ch.AssigneeID = &v
		}
	}
	if p.DueDate != nil {
		if strings.TrimSpace(*p.DueDate) == "" {
			ch.ClearDueDate = true
		} else if d, err := parseDate(*p.DueDate); err != nil {
			ve.add("due_date", "must be an ISO-8601 date")
		} else {
			ch.DueDate = &d
		}
	}
	if p.Tags != nil {
		v := checkTags(ve, *p.Tags)
		ch.Tags = &v
	}
	if p.Links != nil {
		v := checkLinks(ve, *p.Links)
		ch.Links = &v
	}
	checkHours(ve, "estimated_hours", p.EstimatedHours)
	checkHours(ve, "actual_hours", p.ActualHours)
	if err := ve.orNil(); err != nil {
		return TaskChanges{}, err
	}
	return ch, nil
}

type MoveInput struct {
	Status string `json:"status"`
	Index  int    `json:"index"`
}

func (in MoveInput) Validate() error {
	ve := &ValidationError{}
	if !validStatus(in.Status) {
		ve.add("status", "must be one of todo, in-progress, done")
	}
	if in.Index < 0 {
		ve.add("index", "must not be negative")
	}
	return ve.orNil()
}

func parseComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	ve := &ValidationError{}
	checkLen(ve, "content", content, maxCommentLen)
	return content, ve.orNil()
}

type LinkInput struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Parse returns the display name and the normalised URL.
func (in LinkInput) Parse() (string, string, error) {
	raw := strings.TrimSpace(in.URL)
	if !isHTTPURL(raw) {
		return "", "", invalid("url", "must be an absolute http(s) URL")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = raw
	}
	return name, raw, nil
}

type UserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func (in *UserInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	ve := &ValidationError{}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		ve.add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		ve.add("password", "must be at least 6 characters")
	}
	if in.Role == "" {
		in.Role = RoleWorker
	}
	if !in.Role.Valid() {
		ve.add("role", "must be worker or admin")
	}
	return ve.orNil()
}

type UserPatch struct {
	Name *string `json:"name"`
	Role *Role   `json:"role"`
}

func (p *UserPatch) Validate() error {
	ve := &ValidationError{}
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if v == "" {
			ve.add("name", "required")
		}
		p.Name = &v
	}
	if p.Role != nil && !p.Role.Valid() {
		ve.add("role", "must be worker or admin")
	}
	if p.Name == nil && p.Role == nil {
		ve.add("body", "nothing to update")
	}
	return ve.orNil()
}

func validStatus(s string) bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

func validPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

func checkLen(ve *ValidationError, field, v string, max int) {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		ve.add(field, "required")
	case n > max:
		ve.add(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
}

func checkTags(ve *ValidationError, tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			ve.add("tags", "must not contain empty tags")
			continue
		}
		out = append(out, t)
	}
	return out
}

func checkLinks(ve *ValidationError, links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if !isHTTPURL(l) {
			ve.add("links", "must be absolute http(s) URLs")
			continue
		}
		out = append(out, l)
	}
	return out
}

func checkHours(ve *ValidationError, field string, h *float64) {
	if h != nil && *h < 0 {
		ve.add(field, "must not be negative")
	}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates (midnight UTC).
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
