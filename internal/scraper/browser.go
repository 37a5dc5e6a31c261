// Package scraper renders Granola notes in headless Chrome and extracts their structured content.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/IliaW/granola-scraper-bot/config"
	"github.com/IliaW/granola-scraper-bot/internal/model"
)

const (
	privateNoteMessage = "This note is private. Make the page public to share it."
	timeoutMessage     = "Page load timed out."
	emptyMessage       = "Could not extract content from the page."
)

// Shown instead of the note title when the page needs a login.
var accessDeniedPhrases = []string{
	"login to access",
	"sign in to access",
	"you don't have access",
	"you do not have access",
	"access denied",
}

var ErrNavigation = errors.New("navigation failed")

type PageScraper interface {
	Scrape(context.Context, model.ScrapeRequest) model.ScrapeResult
}

// BrowserScraper starts a fresh Chrome for every request. Nothing is shared between requests.
type BrowserScraper struct {
	cfg *config.ScraperConfig
	log *slog.Logger
}

func NewBrowserScraper(cfg *config.ScraperConfig, log *slog.Logger) *BrowserScraper {
	return &BrowserScraper{cfg: cfg, log: log}
}

// Scrape never fails with an error. Every outcome, including a panic inside chromedp, is a ScrapeResult.
func (s *BrowserScraper) Scrape(ctx context.Context, req model.ScrapeRequest) (result model.ScrapeResult) {
	startTime := time.Now()
	log := s.log.With(slog.String("url", req.URL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC during scraping!", slog.Any("err", r))
			result = model.Failed(model.InternalError, fmt.Sprintf("Scraping error: %v", r))
		}
		log.Info("scrape finished.", slog.Bool("success", result.OK()),
			slog.Int64("time_to_scrape", time.Since(startTime).Milliseconds()))
	}()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			log.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}))
	defer cancelBrowser()

	// The first Run starts Chrome and binds it to the context it gets, so no deadline here.
	log.Info("launching browser.")
	if err := chromedp.Run(browserCtx); err != nil {
		log.Error("failed to launch browser.", slog.String("err", err.Error()))
		return model.Failed(model.InternalError, "Browser error: "+err.Error())
	}

	log.Info("loading page.")
	if err := runWithin(browserCtx, req.Timeout, enableLifeCycleEvents(),
		navigateAndWaitFor(req.URL, "networkIdle")); err != nil {
		log.Error("page load failed.", slog.String("err", err.Error()))
		return failureFrom(err)
	}

	log.Info("waiting for h1 selector.")
	if err := runWithin(browserCtx, s.cfg.HeadingTimeout, chromedp.WaitReady("h1", chromedp.ByQuery)); err != nil {
		log.Error("heading did not appear.", slog.String("err", err.Error()))
		return failureFrom(err)
	}
	log.Debug("waiting for content to render.", slog.Duration("delay", s.cfg.SettleDelay))
	if err := chromedp.Run(browserCtx, chromedp.Sleep(s.cfg.SettleDelay)); err != nil {
		return failureFrom(err)
	}

	var title string
	if err := runWithin(browserCtx, s.cfg.TitleTimeout, chromedp.Text("h1", &title, chromedp.ByQuery)); err != nil {
		log.Error("failed to read title.", slog.String("err", err.Error()))
		return failureFrom(err)
	}
	title = strings.TrimSpace(title)
	if requiresLogin(title) {
		log.Info("page requires login.", slog.String("title", title))
		return model.Failed(model.AccessDenied, privateNoteMessage)
	}

	lines := s.extractPrimary(browserCtx, log)
	if len(lines) == 0 {
		lines = s.extractFallback(browserCtx, log)
	}
	if len(lines) == 0 {
		log.Error("no content extracted.")
		return model.Failed(model.EmptyContent, emptyMessage)
	}

	return model.Succeeded(title, lines)
}

func (s *BrowserScraper) extractPrimary(ctx context.Context, log *slog.Logger) []model.ContentLine {
	var raw []rawLine
	if err := runWithin(ctx, s.cfg.HeadingTimeout, chromedp.Evaluate(primaryScript, &raw)); err != nil {
		log.Warn("js extraction failed, using fallback.", slog.String("err", err.Error()))
		return nil
	}
	lines := collectLines(raw, primaryChrome)
	log.Info("extracted items via js.", slog.Int("raw", len(raw)), slog.Int("lines", len(lines)))

	return lines
}

func (s *BrowserScraper) extractFallback(ctx context.Context, log *slog.Logger) []model.ContentLine {
	log.Info("using fallback extraction.")
	var html string
	err := runWithin(ctx, s.cfg.HeadingTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		rootNode, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		log.Error("fallback extraction failed.", slog.String("err", err.Error()))
		return nil
	}
	lines, err := fallbackLines(html)
	if err != nil {
		log.Error("fallback extraction failed.", slog.String("err", err.Error()))
		return nil
	}

	return lines
}

func requiresLogin(title string) bool {
	lower := strings.ToLower(title)
	for _, phrase := range accessDeniedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func failureFrom(err error) model.ScrapeResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Failed(model.Timeout, timeoutMessage)
	}
	return model.Failed(model.InternalError, "Scraping error: "+err.Error())
}

// runWithin runs actions with their own deadline. The tab stays open when the deadline hits,
// it is closed only by cancelling the browser context.
func runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(tCtx, actions...)
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		err = page.SetLifecycleEventsEnabled(true).Do(ctx)
		if err != nil {
			return err
		}
		return nil
	}
}

type frameEvent struct {
	frameID  cdp.FrameID
	loaderID cdp.LoaderID
	fired    bool
}

// navigateAndWaitFor waits for the lifecycle event of the main frame's current document.
// Events of the previous document and of child frames are ignored. A client side redirect
// starts a new loader in the main frame, the wait follows it.
func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		events := make(chan frameEvent, 64)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			var fe frameEvent
			switch e := ev.(type) {
			case *page.EventLifecycleEvent:
				if e.Name != eventName {
					return
				}
				fe = frameEvent{frameID: e.FrameID, loaderID: e.LoaderID, fired: true}
			case *page.EventFrameNavigated:
				if e.Frame == nil || e.Frame.ParentID != "" {
					return
				}
				fe = frameEvent{frameID: e.Frame.ID, loaderID: e.Frame.LoaderID}
			default:
				return
			}
			select {
			case events <- fe:
			default:
			}
		})

		frameID, loaderID, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("%w: %s", ErrNavigation, errorText)
		}

		for {
			select {
			case e := <-events:
				if e.frameID != frameID {
					continue
				}
				if !e.fired {
					loaderID = e.loaderID
					continue
				}
				if e.loaderID == loaderID {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
