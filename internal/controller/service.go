package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dgnsrekt/audiosniff/internal/archive"
	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/relay"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

// Scanner is the page-scan side the service can drive on demand.
type Scanner interface {
	Tracked() []string
	ScanTab(ctx context.Context, tabID string) (int, error)
}

// TabCounter reports how many browser tabs are attached.
type TabCounter interface {
	Count() int
}

// ListOptions filters and orders an enumeration of captured media.
type ListOptions struct {
	Query string
	Sort  string
	Order string
}

// ScanResult summarizes an on-demand page scan.
type ScanResult struct {
	Tabs   int      `json:"tabs"`
	Added  int      `json:"added"`
	Errors []string `json:"errors,omitempty"`
}

// Status is a point-in-time view of the service.
type Status struct {
	Records     int `json:"records"`
	Tabs        int `json:"tabs"`
	ScannedTabs int `json:"scanned_tabs"`
}

// Service backs the HTTP API and the CLI with registry, relay, bundling and
// archive operations.
type Service struct {
	registry   *media.Registry
	dispatcher *relay.Dispatcher
	bundler    *download.Bundler
	archives   *archive.Store
	scanner    Scanner
	tabs       TabCounter
}

// NewService wires the service. scanner and tabs may be nil.
func NewService(registry *media.Registry, dispatcher *relay.Dispatcher, bundler *download.Bundler, archives *archive.Store, scanner Scanner, tabs TabCounter) *Service {
	return &Service{
		registry:   registry,
		dispatcher: dispatcher,
		bundler:    bundler,
		archives:   archives,
		scanner:    scanner,
		tabs:       tabs,
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &types.CodedError{Code: types.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// ListMedia returns captured records filtered by Query and ordered by Sort.
func (s *Service) ListMedia(_ context.Context, opts ListOptions) ([]media.Record, error) {
	sortKey := strings.ToLower(strings.TrimSpace(opts.Sort))
	if sortKey == "" {
		sortKey = "date"
	}
	order := strings.ToLower(strings.TrimSpace(opts.Order))
	if order == "" {
		order = "desc"
	}
	if sortKey != "name" && sortKey != "date" && sortKey != "size" {
		return nil, &types.CodedError{Code: types.CodeValidation, Message: "sort must be one of name, date, size"}
	}
	if order != "asc" && order != "desc" {
		return nil, &types.CodedError{Code: types.CodeValidation, Message: "order must be asc or desc"}
	}

	records := s.registry.List()
	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		filtered := records[:0]
		for _, r := range records {
			if matchesQuery(r, q) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	less := recordLess(sortKey)
	sort.SliceStable(records, func(i, j int) bool {
		if order == "desc" {
			return less(records[j], records[i])
		}
		return less(records[i], records[j])
	})
	return records, nil
}

func matchesQuery(r media.Record, q string) bool {
	return strings.Contains(strings.ToLower(r.Filename), q) ||
		strings.Contains(strings.ToLower(r.TabTitle), q) ||
		strings.Contains(strings.ToLower(r.URL), q)
}

func recordLess(key string) func(a, b media.Record) bool {
	switch key {
	case "name":
		return func(a, b media.Record) bool {
			return strings.ToLower(a.Filename) < strings.ToLower(b.Filename)
		}
	case "size":
		return func(a, b media.Record) bool {
			return sizeOf(a) < sizeOf(b)
		}
	default:
		return func(a, b media.Record) bool {
			return a.Timestamp.Before(b.Timestamp)
		}
	}
}

// sizeOf treats unknown sizes as smaller than any known size.
func sizeOf(r media.Record) int64 {
	if r.FileSize == nil {
		return -1
	}
	return *r.FileSize
}

// GetMedia returns one record.
func (s *Service) GetMedia(_ context.Context, id string) (media.Record, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return media.Record{}, err
	}
	rec, ok := s.registry.Get(strings.TrimSpace(id))
	if !ok {
		return media.Record{}, &types.CodedError{Code: types.CodeNotFound, Message: "media not found: " + id}
	}
	return rec, nil
}

// RemoveMedia deletes one record. A missing id is not an error; the result
// reports whether anything was removed.
func (s *Service) RemoveMedia(ctx context.Context, id string) (bool, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	_, existed := s.registry.Get(id)
	if err := s.relay(ctx, relay.RemoveMedia{ID: id}); err != nil {
		return false, err
	}
	return existed, nil
}

// ClearMedia empties the registry and returns how many records were held.
func (s *Service) ClearMedia(ctx context.Context) (int, error) {
	n := s.registry.Len()
	if err := s.relay(ctx, relay.ClearMedia{}); err != nil {
		return 0, err
	}
	return n, nil
}

// DownloadMedia saves one file. id selects a captured record; otherwise url
// is fetched directly. filename overrides the derived name.
func (s *Service) DownloadMedia(ctx context.Context, id, url, filename string) (relay.DownloadResult, error) {
	id, url, filename = strings.TrimSpace(id), strings.TrimSpace(url), strings.TrimSpace(filename)
	if id != "" {
		rec, err := s.GetMedia(ctx, id)
		if err != nil {
			return relay.DownloadResult{}, err
		}
		url = rec.URL
		if filename == "" {
			filename = rec.Filename
		}
	}
	if err := s.requireNonEmpty(url, "id or url"); err != nil {
		return relay.DownloadResult{}, err
	}

	resp := s.dispatcher.Handle(ctx, relay.DownloadMedia{URL: url, Filename: filename})
	if !resp.Success {
		return relay.DownloadResult{}, &types.CodedError{Code: types.CodeDownloadFailed, Message: resp.Error}
	}
	res, _ := resp.Data.(relay.DownloadResult)
	return res, nil
}

// BundleMedia builds a zip of the selected records and stores it. all
// selects every captured record.
func (s *Service) BundleMedia(ctx context.Context, ids []string, all bool) (archive.Meta, error) {
	var records []media.Record
	if all {
		records = s.registry.List()
	} else {
		var missing []string
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			rec, ok := s.registry.Get(id)
			if !ok {
				missing = append(missing, id)
				continue
			}
			records = append(records, rec)
		}
		if len(missing) > 0 {
			return archive.Meta{}, &types.CodedError{Code: types.CodeNotFound, Message: "media not found: " + strings.Join(missing, ", ")}
		}
	}
	if len(records) == 0 {
		return archive.Meta{}, &types.CodedError{Code: types.CodeValidation, Message: "no media selected"}
	}

	return s.archives.Create(func(w io.Writer) (download.BundleResult, error) {
		return s.bundler.Bundle(ctx, records, w)
	})
}

// ListBundles returns stored archives, newest first.
func (s *Service) ListBundles(_ context.Context) ([]archive.Meta, error) {
	return s.archives.List()
}

// GetBundle returns archive metadata.
func (s *Service) GetBundle(_ context.Context, id string) (archive.Meta, error) {
	return s.archives.Get(strings.TrimSpace(id))
}

// ReadBundle returns archive bytes and metadata.
func (s *Service) ReadBundle(_ context.Context, id string) ([]byte, archive.Meta, error) {
	return s.archives.Read(strings.TrimSpace(id))
}

// DeleteBundle removes a stored archive.
func (s *Service) DeleteBundle(_ context.Context, id string) error {
	return s.archives.Delete(strings.TrimSpace(id))
}

// Scan runs page scans now. An empty tabID scans every tracked tab.
func (s *Service) Scan(ctx context.Context, tabID string) (ScanResult, error) {
	if s.scanner == nil {
		return ScanResult{}, &types.CodedError{Code: types.CodeCDPUnavailable, Message: "page scanning is disabled"}
	}

	targets := s.scanner.Tracked()
	if tabID = strings.TrimSpace(tabID); tabID != "" {
		targets = []string{tabID}
	}

	var res ScanResult
	for _, id := range targets {
		added, err := s.scanner.ScanTab(ctx, id)
		if err != nil {
			if tabID != "" {
				return ScanResult{}, &types.CodedError{Code: types.CodeNotFound, Message: "scan failed", Cause: err}
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		res.Tabs++
		res.Added += added
	}
	return res, nil
}

// HandleMessage answers a raw relay envelope.
func (s *Service) HandleMessage(ctx context.Context, raw []byte) relay.Response {
	return s.dispatcher.HandleRaw(ctx, bytes.TrimSpace(raw))
}

// Status reports registry and tab counts.
func (s *Service) Status(_ context.Context) Status {
	st := Status{Records: s.registry.Len()}
	if s.tabs != nil {
		st.Tabs = s.tabs.Count()
	}
	if s.scanner != nil {
		st.ScannedTabs = len(s.scanner.Tracked())
	}
	return st
}

func (s *Service) relay(ctx context.Context, req relay.Request) error {
	resp := s.dispatcher.Handle(ctx, req)
	if !resp.Success {
		return fmt.Errorf("%s: %s", req.Type(), resp.Error)
	}
	return nil
}
