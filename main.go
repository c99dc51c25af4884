// Package main is the entry point for the Glucose Widget application
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/mrcode/glucose-widget/internal/app"
	"github.com/mrcode/glucose-widget/internal/feed"
	"github.com/mrcode/glucose-widget/internal/history"
	"github.com/mrcode/glucose-widget/internal/logging"
	"github.com/mrcode/glucose-widget/internal/models"
	"github.com/mrcode/glucose-widget/internal/notifications"
	"github.com/mrcode/glucose-widget/internal/tray"
	"github.com/mrcode/glucose-widget/internal/visibility"
)

func main() {
	configPath := flag.String("config", "", "settings file (default: user config dir)")
	headless := flag.Bool("headless", false, "log readings instead of showing a tray icon")
	check := flag.Bool("check", false, "probe the current endpoint and exit")
	flag.Parse()

	if err := run(*configPath, *headless, *check); err != nil {
		fmt.Fprintf(os.Stderr, "glucose-widget: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless, check bool) error {
	if configPath == "" {
		path, err := models.GetConfigPath()
		if err != nil {
			return fmt.Errorf("locating settings: %w", err)
		}
		configPath = path
	}

	settings := models.DefaultSettings()
	if err := settings.LoadFrom(configPath); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(settings.LogLevel))
	logger.Debug("settings loaded", slog.String("path", configPath))

	client := feed.NewClient(settings.CurrentURL, settings.GraphURL, settings.Timeout())

	if check {
		ctx, cancel := context.WithTimeout(context.Background(), settings.Timeout())
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return err
		}
		logger.Info("endpoint reachable", slog.String("url", settings.CurrentURL))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := app.NewMetrics(registry)
	if settings.MetricsAddr != "" {
		go app.ServeMetrics(ctx, settings.MetricsAddr, registry, logger)
	}

	buffer := history.New(settings.HistoryCapacity, settings.StaleAfter())
	poller := app.NewPoller(client, buffer, metrics, logger)
	notifyManager := notifications.NewManager(settings)

	if !settings.IsConfigured() {
		logger.Warn("current and graph URLs are not set", slog.String("config", configPath))
	}

	if headless {
		widget := app.NewWidget(settings, configPath, poller, notifyManager, app.NewLogSink(logger), logger)
		watchVisibility(ctx, widget, logger)
		widget.Run(ctx)
		return nil
	}

	panel, err := tray.NewPanel(tray.DefaultPanelSize)
	if err != nil {
		return err
	}
	sink := tray.NewSink(panel)
	widget := app.NewWidget(settings, configPath, poller, notifyManager, sink, logger)

	wailsApp := application.New(application.Options{
		Name:        "Glucose Widget",
		Description: "Current glucose reading and trend in the system tray",
		Logger:      logger,
		Services: []application.Service{
			application.NewService(widget),
		},
	})

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("---")

	menu := application.NewMenu()
	menu.Add("Refresh now").OnClick(func(*application.Context) {
		widget.ForceRefresh()
	})
	menu.Add("Send test alert").OnClick(func(*application.Context) {
		if err := widget.SendTestNotification(); err != nil {
			logger.Warn("sending test alert", logging.Err(err))
		}
	})
	menu.AddSeparator()
	menu.Add("Quit").OnClick(func(*application.Context) {
		wailsApp.Quit()
	})
	systemTray.SetMenu(menu)

	sink.Attach(wailsApp, systemTray)
	watchVisibility(ctx, widget, logger)
	go widget.Run(ctx)

	go func() {
		<-ctx.Done()
		wailsApp.Quit()
	}()

	err = wailsApp.Run()
	widget.Stop()
	return err
}

// watchVisibility polls on screen unlock when a session bus is available
func watchVisibility(ctx context.Context, widget *app.Widget, logger *slog.Logger) {
	watcher, err := visibility.NewWatcher(logger)
	if err != nil {
		logger.Debug("visibility watcher unavailable", logging.Err(err))
		return
	}

	ch, err := watcher.Watch(ctx)
	if err != nil {
		logger.Debug("visibility watcher unavailable", logging.Err(err))
		_ = watcher.Close()
		return
	}
	widget.SetVisibility(ch)

	go func() {
		<-ctx.Done()
		_ = watcher.Close()
	}()
}
