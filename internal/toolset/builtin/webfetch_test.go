package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

func TestWebFetchConvertsHTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Hello</h1><p>world</p>"))
	}))
	defer srv.Close()

	wf := &WebFetch{}
	got := wf.Execute(context.Background(), map[string]any{"url": srv.URL})
	if got.Kind != toolset.ReturnOk {
		t.Fatalf("Kind = %q, want ok (message=%s)", got.Kind, got.Message)
	}
	if !strings.Contains(got.Output, "Hello") || !strings.Contains(got.Output, "world") {
		t.Fatalf("Output = %q, want converted markdown containing Hello and world", got.Output)
	}
	if strings.Contains(got.Output, "<h1>") {
		t.Fatalf("Output still contains raw HTML tags: %q", got.Output)
	}
}

func TestWebFetchRawFormatSkipsConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Hello</h1>"))
	}))
	defer srv.Close()

	wf := &WebFetch{}
	got := wf.Execute(context.Background(), map[string]any{"url": srv.URL, "format": "raw"})
	if got.Kind != toolset.ReturnOk {
		t.Fatalf("Kind = %q, want ok", got.Kind)
	}
	if !strings.Contains(got.Output, "<h1>Hello</h1>") {
		t.Fatalf("Output = %q, want raw HTML preserved", got.Output)
	}
}

func TestWebFetchRejectsMissingURL(t *testing.T) {
	wf := &WebFetch{}
	got := wf.Execute(context.Background(), map[string]any{})
	if got.Kind != toolset.ReturnError || got.Brief != toolset.BriefValidateError {
		t.Fatalf("got %+v, want a ValidateError", got)
	}
}

func TestWebFetchSurfacesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	wf := &WebFetch{}
	got := wf.Execute(context.Background(), map[string]any{"url": srv.URL})
	if got.Kind != toolset.ReturnError || got.Brief != toolset.BriefRuntimeError {
		t.Fatalf("got %+v, want a RuntimeError for HTTP 404", got)
	}
}
