package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GenerateResponse{Response: "Cook at home.", Done: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tiny")
	text, err := c.Generate(context.Background(), "help")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Cook at home." {
		t.Fatalf("text = %q", text)
	}
	if got.Model != "tiny" || got.Prompt != "help" || got.Stream {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			wantErr: "status 404",
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantErr: "failed to decode response",
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":"out of memory"}`))
			},
			wantErr: "out of memory",
		},
		{
			name: "incomplete",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"response":"partial","done":false}`))
			},
			wantErr: "incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "").Generate(context.Background(), "p")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := NewClient(srv.URL, "").Generate(ctx, "p"); err == nil {
		t.Fatal("expected error for expired context")
	}
}

func TestDefaults(t *testing.T) {
	c := NewClient("", "")
	if c.endpoint != DefaultEndpoint || c.Model() != DefaultModel {
		t.Fatalf("unexpected defaults %q %q", c.endpoint, c.Model())
	}
}
