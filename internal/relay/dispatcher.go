package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

// Downloader hands one URL to the download facility and returns where it
// landed.
type Downloader interface {
	Download(ctx context.Context, url, filename string) (string, error)
}

// RulesProvider returns the active sniff rules.
type RulesProvider interface {
	Rules() *media.Rules
}

// Notifier broadcasts registry changes. It never reports delivery failure.
type Notifier interface {
	NotifyCaptured(rec media.Record)
	NotifyRemoved(id string)
	NotifyCleared()
}

// DownloadResult is the data of a successful DOWNLOAD_MEDIA response.
type DownloadResult struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// DOMResult is the data of a DOM_AUDIO_FOUND acknowledgement.
type DOMResult struct {
	Received int `json:"received"`
	Added    int `json:"added"`
}

// Dispatcher answers relay requests against the registry and the download
// facility. It holds no state of its own.
type Dispatcher struct {
	registry   *media.Registry
	downloader Downloader
	notifier   Notifier
	rules      RulesProvider
	now        func() time.Time
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(registry *media.Registry, downloader Downloader, notifier Notifier, rules RulesProvider) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		downloader: downloader,
		notifier:   notifier,
		rules:      rules,
		now:        time.Now,
	}
}

// HandleRaw decodes a wire message and dispatches it. Decode failures come
// back as a failure envelope.
func (d *Dispatcher) HandleRaw(ctx context.Context, data []byte) Response {
	req, err := DecodeRequest(data)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("invalid", "error").Inc()
		return Fail(err)
	}
	return d.Handle(ctx, req)
}

// Handle dispatches one decoded request. It never panics; every failure is
// rendered into the envelope.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (resp Response) {
	if req == nil {
		return Fail(ErrUnknownType)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("relay handler panic", "type", req.Type(), "panic", r)
			resp = Response{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
		result := "ok"
		if !resp.Success {
			result = "error"
		}
		metrics.RequestsTotal.WithLabelValues(string(req.Type()), result).Inc()
	}()

	switch r := req.(type) {
	case GetCapturedMedia:
		return OK(d.registry.List())
	case DownloadMedia:
		return d.download(ctx, r)
	case ClearMedia:
		n := d.registry.Clear()
		metrics.RegistrySize.Set(0)
		slog.Info("registry cleared", "removed", n)
		d.notifier.NotifyCleared()
		return OK(nil)
	case RemoveMedia:
		if d.registry.Remove(r.ID) {
			metrics.RegistrySize.Set(float64(d.registry.Len()))
			d.notifier.NotifyRemoved(r.ID)
		}
		return OK(nil)
	case DOMAudioFound:
		return OK(d.mergeDOM(r.Files))
	default:
		return Fail(ErrUnknownType)
	}
}

func (d *Dispatcher) download(ctx context.Context, r DownloadMedia) Response {
	filename := r.Filename
	if strings.TrimSpace(filename) == "" {
		filename = d.rules.Rules().DeriveFilename(r.URL, d.now())
	}
	path, err := d.downloader.Download(ctx, r.URL, filename)
	if err != nil {
		slog.Warn("download failed", "filename", filename, "code", types.CodeOf(err), "error", err)
		return Fail(err)
	}
	return OK(DownloadResult{Path: path, Filename: filename})
}

// mergeDOM inserts page-scan findings, filling fields the scanner left blank.
func (d *Dispatcher) mergeDOM(files []media.Record) DOMResult {
	rules := d.rules.Rules()
	res := DOMResult{Received: len(files)}
	for _, f := range files {
		now := d.now()
		if f.ID == "" {
			f.ID = media.DOMID("audio", now)
		}
		if f.Filename == "" {
			f.Filename = rules.DeriveFilename(f.URL, now)
		}
		if f.ContentType == "" {
			f.ContentType = "audio/mpeg"
		}
		if f.TabTitle == "" {
			f.TabTitle = media.UnknownTitle
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = now.UTC()
		}
		f.Source = media.SourceDOM

		stored, inserted := d.registry.Insert(f)
		if !inserted {
			metrics.DuplicatesTotal.WithLabelValues(string(media.SourceDOM)).Inc()
			continue
		}
		res.Added++
		metrics.CapturesTotal.WithLabelValues(string(media.SourceDOM)).Inc()
		d.notifier.NotifyCaptured(stored)
	}
	if res.Added > 0 {
		metrics.RegistrySize.Set(float64(d.registry.Len()))
		slog.Info("page scan results merged", "received", res.Received, "added", res.Added)
	}
	return res
}
