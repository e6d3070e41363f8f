package cdp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

// TabRegistry maps CDP target IDs to tab metadata.
type TabRegistry struct {
	tabs map[target.ID]*types.TabInfo
	mu   sync.RWMutex
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{tabs: make(map[target.ID]*types.TabInfo)}
}

// Register records or updates a tab's URL, keeping any known title.
func (r *TabRegistry) Register(targetID target.ID, url string) *types.TabInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.tabs[targetID]
	if !ok {
		info = &types.TabInfo{TargetID: string(targetID)}
		r.tabs[targetID] = info
	}
	info.URL = url
	return &types.TabInfo{TargetID: info.TargetID, URL: info.URL, Title: info.Title}
}

// SetTitle updates the cached title of a known tab.
func (r *TabRegistry) SetTitle(targetID target.ID, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.tabs[targetID]
	if !ok {
		return false
	}
	info.Title = title
	return true
}

func (r *TabRegistry) Get(targetID target.ID) (*types.TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tabs[targetID]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

func (r *TabRegistry) GetByStringID(tabID string) (*types.TabInfo, bool) {
	return r.Get(target.ID(tabID))
}

// List returns a snapshot of all tabs ordered by target ID.
func (r *TabRegistry) List() []types.TabInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.TabInfo, 0, len(r.tabs))
	for _, info := range r.tabs {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

func (r *TabRegistry) Remove(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, targetID)
}

func (r *TabRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// TargetLister lists browser targets with their current titles.
type TargetLister interface {
	ListTargets(ctx context.Context) ([]*target.Info, error)
}

// TitleLookup resolves tab titles from the live target list and caches them
// in the registry.
type TitleLookup struct {
	tabs   *TabRegistry
	lister TargetLister
}

func NewTitleLookup(tabs *TabRegistry, lister TargetLister) *TitleLookup {
	return &TitleLookup{tabs: tabs, lister: lister}
}

// LookupTitle returns the current title of tabID.
func (l *TitleLookup) LookupTitle(ctx context.Context, tabID string) (string, error) {
	targets, err := l.lister.ListTargets(ctx)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	for _, t := range targets {
		if string(t.TargetID) != tabID {
			continue
		}
		l.tabs.SetTitle(t.TargetID, t.Title)
		return t.Title, nil
	}
	if info, ok := l.tabs.GetByStringID(tabID); ok && info.Title != "" {
		return info.Title, nil
	}
	return "", fmt.Errorf("tab %s not found", tabID)
}
