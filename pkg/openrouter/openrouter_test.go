package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if c := NewClient(Config{}); c != nil {
		t.Fatal("client without an api key must be nil")
	}
	if c := NewClient(Config{APIKey: "sk-test"}); c == nil {
		t.Fatal("client with an api key must build")
	}
}

func TestCheckCredentials(t *testing.T) {
	t.Parallel()

	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"openai/gpt-4o-mini","object":"model","created":0,"owned_by":"openai"}]}`))
	}))
	defer ts.Close()

	cfg := Config{APIKey: "sk-test", BaseURL: ts.URL}
	if err := CheckCredentials(context.Background(), cfg); err != nil {
		t.Fatalf("check credentials: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestCheckCredentialsRejectsBadKey(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer ts.Close()

	if err := CheckCredentials(context.Background(), Config{APIKey: "sk-bad", BaseURL: ts.URL}); err == nil {
		t.Fatal("expected an error for a rejected key")
	}
	if err := CheckCredentials(context.Background(), Config{}); err == nil {
		t.Fatal("expected an error without an api key")
	}
}
