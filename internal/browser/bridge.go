// Package browser renders pages in headless Chrome for the get_contents
// tool when a site needs JavaScript to show its text.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultLoadTimeout = 45 * time.Second
	defaultMaxTabs     = 2
	userAgent          = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Bridge manages headless Chrome instances for page retrieval.
type Bridge struct {
	profileDir string
	headless   bool
	timeout    time.Duration
	slots      chan struct{}
	logger     *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir string // Chrome user data directory
	Headless   bool
	Timeout    time.Duration // per page load
	MaxTabs    int           // concurrent Chrome instances
	Logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		home, _ := os.UserHomeDir()
		cfg.ProfileDir = filepath.Join(home, ".regenie", "chrome-profile")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLoadTimeout
	}
	if cfg.MaxTabs <= 0 {
		cfg.MaxTabs = defaultMaxTabs
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		headless:   cfg.Headless,
		timeout:    cfg.Timeout,
		slots:      make(chan struct{}, cfg.MaxTabs),
		logger:     cfg.Logger,
	}
}

// NewContext creates a new chromedp context with the bridge's Chrome profile.
// The caller MUST call cancel() when done.
func (b *Bridge) NewContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, b.allocatorOptions()...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

func (b *Bridge) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(userAgent),
	)
	if b.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// Load navigates to url and returns the document title and its visible
// text. At most MaxTabs loads run at once; the rest wait for a slot.
func (b *Bridge) Load(ctx context.Context, url string) (title, text string, err error) {
	select {
	case b.slots <- struct{}{}:
		defer func() { <-b.slots }()
	case <-ctx.Done():
		return "", "", ctx.Err()
	}

	taskCtx, cancel := b.NewContext(ctx)
	defer cancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	start := time.Now()
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
	)
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", url, err)
	}

	b.logger.Debug("page rendered", "url", url, "chars", len(text), "elapsed", time.Since(start))
	return strings.TrimSpace(title), normalizeText(text), nil
}

// normalizeText trims each line and drops blank ones.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
