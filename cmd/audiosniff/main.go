package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/api"
	"github.com/dgnsrekt/audiosniff/internal/archive"
	"github.com/dgnsrekt/audiosniff/internal/browser"
	"github.com/dgnsrekt/audiosniff/internal/capture"
	"github.com/dgnsrekt/audiosniff/internal/cdp"
	"github.com/dgnsrekt/audiosniff/internal/config"
	"github.com/dgnsrekt/audiosniff/internal/controller"
	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
	"github.com/dgnsrekt/audiosniff/internal/netutil"
	"github.com/dgnsrekt/audiosniff/internal/notify"
	"github.com/dgnsrekt/audiosniff/internal/pagescan"
	"github.com/dgnsrekt/audiosniff/internal/relay"
	"github.com/dgnsrekt/audiosniff/internal/storage"
	"github.com/gofrs/flock"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.SlogLevel(), cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("audiosniff exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("audiosniff config loaded",
		"cdp_url", cfg.GetCDPURL(),
		"bind_addr", cfg.BindAddr,
		"tab_url_filter", cfg.TabURLFilter,
		"data_dir", cfg.DataDir,
		"download_dir", cfg.DownloadDir,
		"archive_dir", cfg.ArchiveDir,
		"rules_file", cfg.RulesFile,
		"scan_pages", cfg.ScanPages,
		"journal", cfg.Journal,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	lock := flock.New(cfg.LockFile())
	locked, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return errors.New("another audiosniff instance holds " + cfg.LockFile())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release instance lock", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress:   cfg.CDPAddress,
			CDPPort:      cfg.CDPPort,
			StartURL:     cfg.BrowserStartURL,
			ProfileDir:   cfg.BrowserProfile,
			LogFileDir:   cfg.BrowserLogDir,
			CrashDumpDir: cfg.BrowserCrashDump,
			Headless:     cfg.BrowserHeadless,
		})
		if err := launcher.Launch(ctx); err != nil {
			return err
		}
		defer launcher.Stop()
	}

	rules, err := media.NewRuleSet(cfg.RulesFile)
	if err != nil {
		return err
	}
	go func() {
		if err := rules.Watch(ctx, 250*time.Millisecond); err != nil {
			slog.Warn("rules watcher stopped", "error", err)
		}
	}()

	registry := media.NewRegistry()
	broker := relay.NewBroker()

	var journal capture.Journal
	if cfg.Journal {
		j := storage.NewJournal(cfg.JournalDir(), "captures", 0, 25)
		defer func() {
			if err := j.Close(); err != nil {
				slog.Debug("journal close failed", "error", err)
			}
		}()
		journal = j
	}

	tabs := cdp.NewTabRegistry()
	raw := cdp.NewRawClient(cfg.GetCDPURL())
	defer raw.Close()

	sniffer := capture.NewSniffer(registry, rules, broker, cdp.NewTitleLookup(tabs, raw), journal)
	defer sniffer.Close()

	fetchClient := &http.Client{Timeout: cfg.FetchTimeout}
	downloads := download.NewManager(cfg.DownloadDir, fetchClient)
	bundler := download.NewBundler(fetchClient, cfg.BundleConcurrency)
	dispatcher := relay.NewDispatcher(registry, downloads, broker, rules)

	var pages cdp.PageWatcher
	var scanner controller.Scanner
	if cfg.ScanPages {
		if err := raw.Connect(ctx); err != nil {
			slog.Warn("page scanning disabled, raw CDP connection failed", "error", err)
		} else {
			s := pagescan.NewScanner(raw, dispatcher, rules, cfg.ScanQuiet)
			defer s.Close()
			pages, scanner = s, s
		}
	}

	cdpClient := cdp.NewClient(cdp.Options{CDPURL: cfg.GetCDPURL(), TabURLFilter: cfg.TabURLFilter}, sniffer, pages, tabs)
	if err := cdpClient.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	archives, err := archive.NewStore(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	retention := archive.NewRetention(archives, cfg.ArchiveRetention, cfg.ArchiveMaxAge)
	if err := retention.Start(ctx); err != nil {
		slog.Warn("archive retention disabled", "schedule", cfg.ArchiveRetention, "error", err)
	} else {
		defer retention.Stop()
	}

	if cfg.NtfyEndpoint != "" {
		go notify.NewForwarder(cfg.NtfyEndpoint, nil).Run(ctx, broker)
	}

	svc := controller.NewService(registry, dispatcher, bundler, archives, scanner, tabs)
	h := api.NewServer(svc, api.Options{
		Events:  relay.SSEHandler(broker),
		Metrics: metrics.Handler(),
	})

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.AutoFallback)
	if err != nil {
		return err
	}
	bindAddr := ln.Addr().String()
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("audiosniff listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("audiosniff shutdown failed", "error", err)
	}
	return nil
}

func setupLogger(level slog.Level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
	return nil
}
