package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Event struct {
	Type        string `json:"type"`
	WorkspaceID int64  `json:"workspace_id"`
	TaskID      *int64 `json:"task_id,omitempty"`
	Payload     any    `json:"payload,omitempty"`
}

// EventBus fans events out to SSE subscribers of one workspace.
type EventBus struct {
	mu        sync.RWMutex
	subs      map[int64]map[chan []byte]struct{}
	heartbeat time.Duration
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int64]map[chan []byte]struct{}), heartbeat: 25 * time.Second}
}

func (b *EventBus) Subscribe(workspaceID int64) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[workspaceID] == nil {
		b.subs[workspaceID] = make(map[chan []byte]struct{})
	}
	b.subs[workspaceID][ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[workspaceID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, workspaceID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks; slow subscribers miss events.
func (b *EventBus) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.WorkspaceID] {
		select {
		case ch <- data:
		default:
		}
	}
}

func (b *EventBus) subscribers(workspaceID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[workspaceID])
}

// ServeSSE streams one workspace until the client goes away.
func (b *EventBus) ServeSSE(w http.ResponseWriter, r *http.Request, workspaceID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe(workspaceID)
	defer cancel()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// heartbeat through proxies
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
