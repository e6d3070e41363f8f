package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

const attachTimeout = 15 * time.Second

// ResponseHandler consumes completed response headers for a tab.
type ResponseHandler interface {
	OnResponseReceived(tabID string, ev *network.EventResponseReceived)
}

// PageWatcher is told about tab lifecycle and navigation so it can rescan
// pages.
type PageWatcher interface {
	Track(ctx context.Context, tabID string) error
	Trigger(tabID string) bool
	Untrack(tabID string)
}

// Options configures a Client.
type Options struct {
	CDPURL       string
	TabURLFilter string
}

// Client manages CDP connections to browser tabs.
type Client struct {
	opts        Options
	responses   ResponseHandler
	pages       PageWatcher
	tabRegistry *TabRegistry

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	ownTarget     target.ID

	tabs   map[target.ID]*TabContext
	tabsMu sync.RWMutex
	wg     sync.WaitGroup
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wires a client. pages may be nil when page scanning is off.
func NewClient(opts Options, responses ResponseHandler, pages PageWatcher, tabRegistry *TabRegistry) *Client {
	return &Client{
		opts:        opts,
		responses:   responses,
		pages:       pages,
		tabRegistry: tabRegistry,
		tabs:        make(map[target.ID]*TabContext),
	}
}

// Connect attaches to every matching page target and starts watching for
// new ones. Having no matching tab yet is not an error.
func (c *Client) Connect(ctx context.Context) error {
	slog.Info("Connecting to Chromium", "url", c.opts.CDPURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.opts.CDPURL)
	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)

	if err := chromedp.Run(c.browserCtx); err != nil {
		c.browserCancel()
		c.allocCancel()
		return types.NewError(types.CodeCDPUnavailable, "failed to connect to browser", err)
	}
	if ch := chromedp.FromContext(c.browserCtx); ch != nil && ch.Target != nil {
		c.ownTarget = ch.Target.TargetID
	}

	chromedp.ListenBrowser(c.browserCtx, c.browserEventHandler)
	browser := chromedp.FromContext(c.browserCtx).Browser
	if err := target.SetDiscoverTargets(true).Do(cdproto.WithExecutor(c.browserCtx, browser)); err != nil {
		slog.Warn("target discovery unavailable, new tabs will not be attached", "error", err)
	}

	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return types.NewError(types.CodeCDPUnavailable, "failed to enumerate targets", err)
	}
	slog.Info("Found browser targets", "count", len(targets))

	attached := 0
	for _, t := range targets {
		if !c.wantTarget(t) {
			continue
		}
		if err := c.attachToTab(ctx, t.TargetID, t.URL, t.Title); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attached++
	}

	slog.Info("Attached to tabs", "count", attached, "tab_url_filter", c.opts.TabURLFilter)
	return nil
}

func (c *Client) wantTarget(t *target.Info) bool {
	if t == nil || t.Type != "page" || t.TargetID == c.ownTarget {
		return false
	}
	if !c.matchesTabURL(t.URL) {
		slog.Debug("Skipping tab (url filter)", "url", truncateURL(t.URL))
		return false
	}
	return true
}

func (c *Client) browserEventHandler(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		c.onTargetSeen(e.TargetInfo)
	case *target.EventTargetInfoChanged:
		info := e.TargetInfo
		if info == nil {
			return
		}
		if c.isAttached(info.TargetID) {
			c.tabRegistry.Register(info.TargetID, info.URL)
			c.tabRegistry.SetTitle(info.TargetID, info.Title)
			return
		}
		c.onTargetSeen(info)
	case *target.EventTargetDestroyed:
		go c.detachTab(e.TargetID)
	}
}

// onTargetSeen attaches off the event goroutine; chromedp must not be
// re-entered from a listener.
func (c *Client) onTargetSeen(info *target.Info) {
	if !c.wantTarget(info) || c.isAttached(info.TargetID) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.browserCtx, attachTimeout)
		defer cancel()
		if err := c.attachToTab(ctx, info.TargetID, info.URL, info.Title); err != nil {
			slog.Warn("Failed to attach to new tab", "target_id", info.TargetID, "error", err)
		}
	}()
}

func (c *Client) isAttached(id target.ID) bool {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	_, ok := c.tabs[id]
	return ok
}

func (c *Client) attachToTab(ctx context.Context, targetID target.ID, url, title string) error {
	c.tabsMu.Lock()
	if _, ok := c.tabs[targetID]; ok {
		c.tabsMu.Unlock()
		return nil
	}
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	c.tabRegistry.Register(targetID, url)
	if title != "" {
		c.tabRegistry.SetTitle(targetID, title)
	}

	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))
	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		c.dropTab(targetID)
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	slog.Info("Attached to tab", "target_id", targetID, "url", truncateURL(url))

	if c.pages != nil {
		if err := c.pages.Track(ctx, string(targetID)); err != nil {
			slog.Warn("Page scanning unavailable for tab", "target_id", targetID, "error", err)
		}
	}
	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			c.responses.OnResponseReceived(tabID, e)
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				c.tabRegistry.Register(target.ID(tabID), e.Frame.URL)
				slog.Debug("Tab navigated (full)", "tab_id", tabID, "url", truncateURL(e.Frame.URL))
			}
		case *page.EventNavigatedWithinDocument:
			c.tabRegistry.Register(target.ID(tabID), e.URL)
			slog.Debug("Tab navigated (SPA)", "tab_id", tabID, "url", truncateURL(e.URL))
			c.triggerScan(tabID)
		case *page.EventLoadEventFired:
			c.triggerScan(tabID)
		}
	}
}

func (c *Client) triggerScan(tabID string) {
	if c.pages != nil {
		c.pages.Trigger(tabID)
	}
}

func (c *Client) detachTab(targetID target.ID) {
	if !c.isAttached(targetID) {
		return
	}
	c.dropTab(targetID)
	if c.pages != nil {
		c.pages.Untrack(string(targetID))
	}
	slog.Info("Tab closed", "target_id", targetID)
}

// dropTab forgets a tab and releases its chromedp context.
func (c *Client) dropTab(targetID target.ID) {
	c.tabsMu.Lock()
	tab, ok := c.tabs[targetID]
	delete(c.tabs, targetID)
	c.tabsMu.Unlock()
	c.tabRegistry.Remove(targetID)
	if ok {
		tab.cancel()
	}
}

// Close stops watching the browser. Tabs stay open.
func (c *Client) Close() error {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	c.wg.Wait()

	c.tabsMu.Lock()
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) matchesTabURL(url string) bool {
	if c.opts.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.opts.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
