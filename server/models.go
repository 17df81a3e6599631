package main

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Role string

const (
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool { return r == RoleWorker || r == RoleAdmin }

const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// LinkMimeType marks attachment rows that hold a URL instead of an uploaded file.
const LinkMimeType = "link"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Workspace struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	IsArchived  bool      `json:"is_archived"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// populated by listing queries
	MemberCount int `json:"member_count"`
	TaskCount   int `json:"task_count"`
}

type WorkspaceMember struct {
	WorkspaceID int64     `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	User        *User     `json:"user,omitempty"`
}

type Task struct {
	ID             int64      `json:"id"`
	WorkspaceID    int64      `json:"workspace_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *string    `json:"assignee_id,omitempty"`
	CreatedBy      *string    `json:"created_by,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Tags           stringList `json:"tags"`
	Links          stringList `json:"links"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Pos            int64      `json:"pos"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TaskDetail is a Task joined with its workspace, people, comments and attachments at read time.
type TaskDetail struct {
	Task
	Workspace   *Workspace   `json:"workspace,omitempty"`
	Assignee    *User        `json:"assignee,omitempty"`
	Creator     *User        `json:"creator,omitempty"`
	Comments    []Comment    `json:"comments"`
	Attachments []Attachment `json:"attachments"`
}

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    *string   `json:"user_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    *User     `json:"author,omitempty"`
}

type Attachment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	UploadedBy *string   `json:"uploaded_by,omitempty"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"-"`
	URL        string    `json:"url,omitempty"`
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a Attachment) IsLink() bool { return a.MimeType == LinkMimeType }

// File is a standalone document in the shared data library.
type File struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	FilePath     string    `json:"-"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	UploadedBy   *string   `json:"uploaded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ChatTurn struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type BrainConversation struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	WorkspaceID *int64    `json:"workspace_id,omitempty"`
	TaskID      *int64    `json:"task_id,omitempty"`
	Title       string    `json:"title"`
	Messages    chatTurns `json:"messages"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// stringList is stored as a JSON array in a text column so both backends share one schema shape.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *stringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

func (l stringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

type chatTurns []ChatTurn

func (c chatTurns) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ChatTurn(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *chatTurns) Scan(src any) error {
	return scanJSON(src, (*[]ChatTurn)(c))
}

func (c chatTurns) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ChatTurn(c))
}

func scanJSON(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return errors.New("unsupported json column type")
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
