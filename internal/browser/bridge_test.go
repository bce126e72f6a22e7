package browser

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestNewBridge_Defaults(t *testing.T) {
	b := NewBridge(BridgeConfig{Logger: testLogger()})
	if !strings.HasSuffix(b.profileDir, filepath.Join(".regenie", "chrome-profile")) {
		t.Errorf("profile dir = %q", b.profileDir)
	}
	if b.timeout != defaultLoadTimeout {
		t.Errorf("timeout = %v", b.timeout)
	}
	if cap(b.slots) != defaultMaxTabs {
		t.Errorf("slots = %d", cap(b.slots))
	}
}

func TestLoad_CancelledWhileWaitingForSlot(t *testing.T) {
	b := NewBridge(BridgeConfig{MaxTabs: 1, Logger: testLogger()})
	b.slots <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := b.Load(ctx, "https://example.com"); err == nil {
		t.Fatal("expected context error while all slots are busy")
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  Title  \n\n\tBody line \n   \nEnd"
	if got := normalizeText(in); got != "Title\nBody line\nEnd" {
		t.Fatalf("normalizeText = %q", got)
	}
}

func findChrome() string {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestLoad_RendersPage(t *testing.T) {
	if findChrome() == "" {
		t.Skip("chrome not installed")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Meadows</title></head><body><p>Wildflower meadows</p>
<script>document.body.insertAdjacentHTML('beforeend', '<p>rendered by js</p>')</script></body></html>`))
	}))
	defer srv.Close()

	b := NewBridge(BridgeConfig{ProfileDir: t.TempDir(), Headless: true, Logger: testLogger()})
	title, text, err := b.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if title != "Meadows" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "Wildflower meadows") || !strings.Contains(text, "rendered by js") {
		t.Errorf("text = %q", text)
	}
}
