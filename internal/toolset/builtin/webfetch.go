package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

const (
	webFetchMaxResponseSize = 5 * 1024 * 1024
	webFetchTimeout         = 30 * time.Second
	webFetchMaxLines        = 2000
)

const webFetchParamsSchema = `{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "URL to fetch; https:// is assumed if no scheme is given"},
    "format": {"type": "string", "enum": ["markdown", "raw"], "description": "markdown converts an HTML response body; raw returns it unmodified"}
  },
  "required": ["url"]
}`

// WebFetch retrieves a URL over HTTP(S) and, for HTML responses requesting
// markdown, converts the body with html-to-markdown before returning it.
// Network access is never destructive, so it never requires approval.
type WebFetch struct {
	Client *http.Client
}

func (w *WebFetch) Name() string                { return "WebFetch" }
func (w *WebFetch) Description() string         { return "Fetch content from a URL." }
func (w *WebFetch) Parameters() json.RawMessage { return json.RawMessage(webFetchParamsSchema) }

func (w *WebFetch) RequiresApproval(map[string]any) (string, string, []toolset.DisplayBlock) {
	return "", "", nil
}

func (w *WebFetch) httpClient() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: webFetchTimeout}
}

func (w *WebFetch) Execute(ctx context.Context, args map[string]any) toolset.ToolReturnValue {
	urlStr, ok := args["url"].(string)
	if !ok || urlStr == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "url is required")
	}
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		urlStr = "https://" + urlStr
	}
	format := "markdown"
	if f, ok := args["format"].(string); ok && f != "" {
		format = f
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return toolset.ErrorValue(toolset.BriefValidateError, "invalid url: "+err.Error())
	}
	req.Header.Set("User-Agent", "gencode/1.0")

	resp, err := w.httpClient().Do(req)
	if err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return toolset.ErrorValue(toolset.BriefRuntimeError, fmt.Sprintf("http %d: %s", resp.StatusCode, resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxResponseSize))
	if err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "reading response: "+err.Error())
	}

	content := string(body)
	if format == "markdown" && strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if markdown, err := md.NewConverter("", true, nil).ConvertString(content); err == nil {
			content = markdown
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > webFetchMaxLines {
		content = strings.Join(lines[:webFetchMaxLines], "\n")
	}

	return toolset.Ok(content)
}
