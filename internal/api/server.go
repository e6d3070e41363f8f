package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/audiosniff/internal/archive"
	"github.com/dgnsrekt/audiosniff/internal/controller"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/relay"
	"github.com/dgnsrekt/audiosniff/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListMedia(ctx context.Context, opts controller.ListOptions) ([]media.Record, error)
	GetMedia(ctx context.Context, id string) (media.Record, error)
	RemoveMedia(ctx context.Context, id string) (bool, error)
	ClearMedia(ctx context.Context) (int, error)
	DownloadMedia(ctx context.Context, id, url, filename string) (relay.DownloadResult, error)
	BundleMedia(ctx context.Context, ids []string, all bool) (archive.Meta, error)
	ListBundles(ctx context.Context) ([]archive.Meta, error)
	GetBundle(ctx context.Context, id string) (archive.Meta, error)
	ReadBundle(ctx context.Context, id string) ([]byte, archive.Meta, error)
	DeleteBundle(ctx context.Context, id string) error
	Scan(ctx context.Context, tabID string) (controller.ScanResult, error)
	HandleMessage(ctx context.Context, raw []byte) relay.Response
	Status(ctx context.Context) controller.Status
}

// Options carries the non-huma handlers mounted next to the API.
type Options struct {
	Events  http.Handler
	Metrics http.Handler
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("audiosniff API", "1.0.0")
	cfg.DocsPath = ""
	// Responses carry only their documented fields; no "$schema" link.
	cfg.CreateHooks = nil
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(messageDocsHTML)); err != nil {
			slog.Debug("message docs response write failed", "error", err)
		}
	})
	if opts.Events != nil {
		router.Get("/api/v1/events", opts.Events.ServeHTTP)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	registerMediaHandlers(api, svc)
	registerBundleHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case types.CodeDownloadFailed:
			return huma.Error502BadGateway(coded.Message)
		case types.CodeCDPUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
