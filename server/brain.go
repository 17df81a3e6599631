package main

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTitleLen   = 60
	maxMessageLen = 8000
)

const brainSystemPrompt = "You are Brain, the assistant built into TaskFlow. Help the user plan, break down and " +
	"prioritise work. Be concise and concrete."

type ConversationInput struct {
	Title       string `json:"title"`
	WorkspaceID *int64 `json:"workspace_id"`
	TaskID      *int64 `json:"task_id"`
}

type ConversationPatch struct {
	Title      *string `json:"title"`
	IsArchived *bool   `json:"is_archived"`
}

// Brain owns per-user chat conversations. Only the owner can see or change one.
type Brain struct {
	store   *Store
	engine  *Engine
	model   ChatModel
	history int
	now     func() time.Time
	log     *slog.Logger
}

func NewBrain(store *Store, engine *Engine, model ChatModel, history int, log *slog.Logger) *Brain {
	if history <= 0 {
		history = 20
	}
	return &Brain{store: store, engine: engine, model: model, history: history, now: time.Now, log: log}
}

func (b *Brain) own(ctx context.Context, p Principal, id int64) (BrainConversation, error) {
	if p.UserID == "" {
		return BrainConversation{}, ErrUnauthenticated
	}
	c, err := b.store.GetConversation(ctx, id)
	if err != nil {
		return BrainConversation{}, upstream("get conversation", err)
	}
	if c.UserID != p.UserID {
		return BrainConversation{}, ErrForbidden
	}
	return c, nil
}

func (b *Brain) List(ctx context.Context, p Principal, includeArchived bool) ([]BrainConversation, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}
	cs, err := b.store.ListConversations(ctx, p.UserID, includeArchived)
	return cs, upstream("list conversations", err)
}

func (b *Brain) Get(ctx context.Context, p Principal, id int64) (BrainConversation, error) {
	return b.own(ctx, p, id)
}

// Create checks that any workspace or task context is visible to the caller.
func (b *Brain) Create(ctx context.Context, p Principal, in ConversationInput) (BrainConversation, error) {
	if p.UserID == "" {
		return BrainConversation{}, ErrUnauthenticated
	}
	title := truncateRunes(strings.TrimSpace(in.Title), maxTitleLen)
	if in.WorkspaceID != nil {
		if _, err := b.engine.GetWorkspace(ctx, p, *in.WorkspaceID); err != nil {
			return BrainConversation{}, err
		}
	}
	if in.TaskID != nil {
		t, err := b.engine.GetVisibleTask(ctx, p, *in.TaskID)
		if err != nil {
			return BrainConversation{}, err
		}
		if in.WorkspaceID == nil {
			ws := t.WorkspaceID
			in.WorkspaceID = &ws
		} else if *in.WorkspaceID != t.WorkspaceID {
			return BrainConversation{}, invalid("task_id", "task is not in that workspace")
		}
	}
	c, err := b.store.CreateConversation(ctx, p.UserID, in.WorkspaceID, in.TaskID, title)
	return c, upstream("create conversation", err)
}

func (b *Brain) Update(ctx context.Context, p Principal, id int64, patch ConversationPatch) (BrainConversation, error) {
	if _, err := b.own(ctx, p, id); err != nil {
		return BrainConversation{}, err
	}
	if patch.Title != nil {
		v := truncateRunes(strings.TrimSpace(*patch.Title), maxTitleLen)
		if v == "" {
			return BrainConversation{}, invalid("title", "required")
		}
		patch.Title = &v
	}
	if patch.Title == nil && patch.IsArchived == nil {
		return BrainConversation{}, invalid("body", "nothing to update")
	}
	if err := b.store.UpdateConversation(ctx, id, patch.Title, patch.IsArchived); err != nil {
		return BrainConversation{}, upstream("update conversation", err)
	}
	c, err := b.store.GetConversation(ctx, id)
	return c, upstream("get conversation", err)
}

func (b *Brain) Delete(ctx context.Context, p Principal, id int64) error {
	if _, err := b.own(ctx, p, id); err != nil {
		return err
	}
	return upstream("delete conversation", b.store.DeleteConversation(ctx, id))
}

// Send asks the model for a reply and appends the user turn and the reply together.
// When the model fails nothing is written.
func (b *Brain) Send(ctx context.Context, p Principal, id int64, content string) (BrainConversation, error) {
	c, err := b.own(ctx, p, id)
	if err != nil {
		return BrainConversation{}, err
	}
	content = strings.TrimSpace(content)
	ve := &ValidationError{}
	checkLen(ve, "content", content, maxMessageLen)
	if err := ve.orNil(); err != nil {
		return BrainConversation{}, err
	}

	msgs := []ChatMessage{{Role: "system", Content: b.systemPrompt(ctx, p, c)}}
	for _, t := range lastTurns(c.Messages, b.history) {
		msgs = append(msgs, ChatMessage{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, ChatMessage{Role: "user", Content: content})

	asked := b.now().UTC()
	reply, err := b.model.Complete(ctx, msgs)
	if err != nil {
		b.log.Error("brain completion", "op", "brain.send", "conversation", id, "err", err)
		return BrainConversation{}, &UpstreamError{Op: "brain completion", Err: err}
	}
	turns := []ChatTurn{
		{Role: "user", Content: content, Timestamp: asked},
		{Role: "assistant", Content: reply, Timestamp: b.now().UTC()},
	}
	out, err := b.store.AppendTurns(ctx, id, turns, truncateRunes(content, maxTitleLen))
	return out, upstream("append turns", err)
}

// systemPrompt adds the workspace and task the conversation is pinned to, when still visible.
func (b *Brain) systemPrompt(ctx context.Context, p Principal, c BrainConversation) string {
	var sb strings.Builder
	sb.WriteString(brainSystemPrompt)
	sb.WriteString("\nToday is ")
	sb.WriteString(b.now().UTC().Format("Monday, 2006-01-02"))
	sb.WriteString(".")
	if c.WorkspaceID != nil {
		if ws, err := b.engine.GetWorkspace(ctx, p, *c.WorkspaceID); err == nil {
			sb.WriteString("\nWorkspace: " + ws.Name)
			if ws.Description != "" {
				sb.WriteString(" (" + ws.Description + ")")
			}
		}
	}
	if c.TaskID != nil {
		if t, err := b.engine.GetVisibleTask(ctx, p, *c.TaskID); err == nil {
			sb.WriteString("\nTask: " + t.Title + " [status " + t.Status + ", priority " + t.Priority + "]")
			if t.DueDate != nil {
				sb.WriteString(" due " + t.DueDate.Format(time.DateOnly))
			}
			if t.Description != "" {
				sb.WriteString("\n" + t.Description)
			}
		}
	}
	return sb.String()
}

func lastTurns(turns []ChatTurn, n int) []ChatTurn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
