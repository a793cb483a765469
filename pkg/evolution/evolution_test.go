package evolution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL, APIKey: "secret", Instance: "clinic"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.SendText(context.Background(), "+5511999990000", "Olá!"); err != nil {
		t.Fatalf("send text: %v", err)
	}
	if gotPath != "/message/sendText/clinic" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header not sent")
	}
	if gotBody.Number != "+5511999990000" || gotBody.Text != "Olá!" {
		t.Fatalf("unexpected payload %+v", gotBody)
	}
}

func TestSendTextNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not connected", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL, APIKey: "secret", Instance: "clinic"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.SendText(context.Background(), "+5511999990000", "Olá!"); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: "k", Instance: "i"}); err == nil {
		t.Fatalf("missing url must fail")
	}
	if _, err := NewClient(Config{URL: "http://localhost:8080", APIKey: "k"}); err == nil {
		t.Fatalf("missing instance must fail")
	}
}
