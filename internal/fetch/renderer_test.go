package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRendererDisabledWhenNoParallelism(t *testing.T) {
	_, err := NewRenderer(RenderConfig{MaxParallel: 0}, zap.NewNop())
	if !errors.Is(err, ErrRendererDisabled) {
		t.Fatalf("expected ErrRendererDisabled, got %v", err)
	}
}

func TestRendererCapturesScriptContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><script>document.body.innerHTML = '<span class="price">$12.34</span>';</script></body></html>`)
	}))
	defer srv.Close()

	renderer, err := NewRenderer(RenderConfig{
		UserAgent:   "TestAgent",
		Timeout:     5 * time.Second,
		MaxParallel: 1,
		DomainQPS:   1,
	}, zap.NewNop())
	if errors.Is(err, ErrRendererDisabled) {
		t.Skip("renderer disabled")
	}
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	defer renderer.Close()

	page, err := renderer.Render(context.Background(), srv.URL)
	if err != nil {
		t.Skipf("render failed: %v", err)
	}
	if !page.UsedJS {
		t.Fatal("page not marked as JS-rendered")
	}
	if !strings.Contains(string(page.Body), "$12.34") {
		t.Fatal("rendered body missing script-injected price")
	}
}
