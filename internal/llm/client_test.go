package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatReply(content string) ChatResponse {
	return ChatResponse{
		ID:     "test-id",
		Object: "chat.completion",
		Choices: []ChatChoice{
			{
				Index:        0,
				Message:      ChatChoiceMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8081", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8081" {
		t.Errorf("NewClient() BaseURL = %v, want http://localhost:8081", client.BaseURL)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.opts.httpClient == nil {
		t.Error("NewClient() http client should not be nil")
	}
}

func TestClient_Chat(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    bool
	}{
		{
			name:    "successful chat",
			message: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.Contains(r.Header.Get("Authorization"), "Bearer") {
					t.Error("missing Authorization header")
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(chatReply("Hi there!"))
			},
			wantReply: "Hi there!",
		},
		{
			name:    "no choices returned",
			message: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(ChatResponse{ID: "test-id", Choices: []ChatChoice{}})
			},
			wantErr: true,
		},
		{
			name:    "server error",
			message: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
		{
			name:    "malformed body",
			message: "Hello",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			reply, err := client.Chat(context.Background(), tt.message)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Chat() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Chat() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Chat() reply = %v, want %v", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_ChatWithMessages(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatReply("ok"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "default-model")
	messages := []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "question"},
	}
	reply, err := client.ChatWithMessages(context.Background(), messages, ChatParams{Model: "override", MaxTokens: 64})
	if err != nil {
		t.Fatalf("ChatWithMessages() error = %v", err)
	}
	if reply != "ok" {
		t.Errorf("ChatWithMessages() reply = %q, want ok", reply)
	}
	if got.Model != "override" {
		t.Errorf("request model = %q, want override", got.Model)
	}
	if got.MaxTokens != 64 {
		t.Errorf("request max_tokens = %d, want 64", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "question" {
		t.Errorf("request messages = %+v", got.Messages)
	}
}

func TestClient_DescribeImage(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatReply("a bar chart"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "llava")
	reply, err := client.DescribeImage(context.Background(), "Describe the image", "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("DescribeImage() error = %v", err)
	}
	if reply != "a bar chart" {
		t.Errorf("DescribeImage() reply = %q", reply)
	}

	messages, _ := raw["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	parts, _ := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", parts)
	}
	image, _ := parts[1].(map[string]any)
	if image["type"] != "image_url" {
		t.Errorf("second part type = %v, want image_url", image["type"])
	}
	url, _ := image["image_url"].(map[string]any)
	if url["url"] != "data:image/png;base64,AAAA" {
		t.Errorf("image url = %v", url["url"])
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(chatReply("late"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", WithTimeout(20*time.Millisecond))
	if _, err := client.Chat(context.Background(), "Hello"); err == nil {
		t.Error("Chat() expected timeout error, got nil")
	}
}

func TestThrottle(t *testing.T) {
	if NewThrottle(0) != nil {
		t.Error("NewThrottle(0) should disable throttling")
	}

	var nilThrottle *Throttle
	if err := nilThrottle.Wait(context.Background()); err != nil {
		t.Errorf("nil throttle Wait() error = %v", err)
	}

	throttle := NewThrottle(1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := throttle.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	cancel()
	if err := throttle.Wait(ctx); err == nil {
		t.Error("Wait() on cancelled context expected error")
	}
}
