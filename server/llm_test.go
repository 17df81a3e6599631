package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(BrainConfig{APIURL: srv.URL + "/v1", APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	reply, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "ping"}})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "pong" {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "m" || len(got.Messages) != 1 || got.Messages[0].Content != "ping" {
		t.Fatalf("request = %+v", got)
	}
}

func TestOpenAIClientErrors(t *testing.T) {
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer limited.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	c := NewOpenAIClient(BrainConfig{APIURL: limited.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	_, err := c.Complete(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("want status error, got %v", err)
	}

	c = NewOpenAIClient(BrainConfig{APIURL: empty.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	if _, err := c.Complete(context.Background(), nil); err == nil {
		t.Fatal("empty choices accepted")
	}
}
