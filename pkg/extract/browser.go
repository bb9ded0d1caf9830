package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	applog "github.com/Sriram-PR/price-reconciler/pkg/log"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// BrowserOptions configures the headless browser behind a BrowserSession
type BrowserOptions struct {
	Headless    bool
	Width       int
	Height      int
	ExecPath    string
	UserAgent   string
	PageTimeout time.Duration
}

// BrowserOptionsFrom derives browser options from the application config
func BrowserOptionsFrom(appCfg config.AppConfig, comp config.CompetitorConfig) BrowserOptions {
	a := appCfg.Automation
	return BrowserOptions{
		Headless:    a.IsHeadless(),
		Width:       a.WindowWidth,
		Height:      a.WindowHeight,
		ExecPath:    a.ExecPath,
		UserAgent:   config.GetEffectiveUserAgent(comp, appCfg),
		PageTimeout: a.PageTimeout,
	}
}

// BrowserSession holds one browser tab reused for every page of a competitor.
// It is not safe for concurrent use.
type BrowserSession struct {
	ctx          context.Context
	cancelTab    context.CancelFunc
	cancelAlloc  context.CancelFunc
	rules        Rules
	waitSelector string
	pageTimeout  time.Duration
	log          *logrus.Entry
}

// NewBrowserSession launches the browser and opens the tab. The browser lives until Close
// or until parent is cancelled.
func NewBrowserSession(parent context.Context, opts BrowserOptions, comp config.CompetitorConfig, log *logrus.Entry) (*BrowserSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	cl := applog.NewChromeLogger(log.WithField("source", "chromedp"))
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(cl.Logf),
		chromedp.WithDebugf(cl.Debugf),
		chromedp.WithErrorf(cl.Errorf),
	)

	// An empty Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	wait := comp.WaitSelector
	if wait == "" && len(comp.NameSelectors) > 0 {
		wait = comp.NameSelectors[0]
	}
	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	log.WithFields(logrus.Fields{"headless": opts.Headless, "window": fmt.Sprintf("%dx%d", opts.Width, opts.Height)}).
		Info("Browser session ready")
	return &BrowserSession{
		ctx:          tabCtx,
		cancelTab:    cancelTab,
		cancelAlloc:  cancelAlloc,
		rules:        RulesFor(comp),
		waitSelector: wait,
		pageTimeout:  timeout,
		log:          log,
	}, nil
}

// Extract loads rawURL in the session tab and reads the product.
// Statuses: 200 success, 404 fields missing, 408 wait timeout, 503 browser failure, 500 anything else.
func (s *BrowserSession) Extract(ctx context.Context, rawURL string) (out models.Extraction) {
	pageLog := s.log.WithField("url", rawURL)
	defer func() {
		if r := recover(); r != nil {
			pageLog.Errorf("PANIC during browser extraction: %v", r)
			out = models.Extraction{Status: models.HTTPStatus(500)}
		}
	}()

	runCtx, cancel := context.WithTimeout(s.ctx, s.pageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	pageLog.Info("Loading page")
	err := chromedp.Run(runCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady(s.waitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(pageLog, runCtx, err)
	}

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return s.classify(pageLog, runCtx, err)
	}

	name, price, err := s.rules.ApplyHTML(strings.NewReader(html))
	if err != nil {
		pageLog.Errorf("Unexpected error reading page: %v", err)
		return models.Extraction{Status: models.HTTPStatus(500)}
	}
	if name == "" || price == nil {
		pageLog.WithFields(logrus.Fields{"name": name, "has_price": price != nil}).Error("Extraction failed, name or price missing")
		return models.Extraction{Name: name, Price: price, Status: models.NotFound("name or price missing")}
	}
	pageLog.WithFields(logrus.Fields{"name": name, "price": *price}).Info("Extraction succeeded")
	return models.Extraction{Name: name, Price: price, Status: models.Success()}
}

func (s *BrowserSession) classify(pageLog *logrus.Entry, runCtx context.Context, err error) models.Extraction {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		pageLog.Errorf("Timeout (%s) waiting for %q", s.pageTimeout, s.waitSelector)
		return models.Extraction{Status: models.Timeout(fmt.Sprintf("waited %s for %s", s.pageTimeout, s.waitSelector))}
	}
	pageLog.Errorf("Browser error: %v", err)
	return models.Extraction{Status: models.EngineError(err.Error())}
}

// Close shuts the browser down. Safe to call more than once.
func (s *BrowserSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelTab()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	s.log.Info("Browser session closed")
	return nil
}
