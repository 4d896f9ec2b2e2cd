package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadURLConvertsToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "Gatekeep/1.0" {
			t.Errorf("user agent = %q", got)
		}
		fmt.Fprint(w, `<html><body><h1>Release Notes</h1><p>Nothing <strong>broke</strong>.</p></body></html>`)
	}))
	defer server.Close()

	r := NewReadURL()
	out, err := r.Execute(context.Background(), json.RawMessage(`{"url":"`+server.URL+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Release Notes") {
		t.Fatalf("heading missing from output:\n%s", out)
	}
	if !strings.Contains(out, "**broke**") {
		t.Fatalf("bold not converted:\n%s", out)
	}
	if strings.Contains(out, "<p>") {
		t.Fatalf("raw HTML leaked into output:\n%s", out)
	}
}

func TestReadURLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewReadURL()
	ctx := context.Background()

	if _, err := r.Execute(ctx, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := r.Execute(ctx, json.RawMessage(`{"url":"`+server.URL+`"}`)); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}
