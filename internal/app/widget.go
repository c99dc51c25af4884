package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/glucose-widget/internal/display"
	"github.com/mrcode/glucose-widget/internal/feed"
	"github.com/mrcode/glucose-widget/internal/logging"
	"github.com/mrcode/glucose-widget/internal/models"
	"github.com/mrcode/glucose-widget/internal/notifications"
	"github.com/mrcode/glucose-widget/internal/units"
)

// Frontend event names
const (
	EventUpdate = "glucose:update"
	EventError  = "glucose:error"
)

const placeholderValue = "---"

// View is everything a sink needs to draw the panel
type View struct {
	Record     models.DisplayRecord `json:"record"`
	State      string               `json:"state"`
	Thresholds models.Thresholds    `json:"thresholds"` // Display unit
	Values     []float64            `json:"values"`     // Display unit, oldest first
	Unit       string               `json:"unit"`
	ShowAge    bool                 `json:"showAge"`
	Error      string               `json:"error,omitempty"`
}

// Sink draws a view somewhere
type Sink interface {
	Render(ctx context.Context, view View) error
}

// Widget drives the poll loop and pushes views to a sink
type Widget struct {
	settings      *models.Settings
	configPath    string
	poller        *Poller
	notifyManager *notifications.Manager
	sink          Sink
	logger        *slog.Logger
	now           func() time.Time

	mu                sync.RWMutex
	lastView          *View
	consecutiveErrors int
	isRunning         bool

	refresh    chan struct{}
	resetTimer chan struct{}
	visible    <-chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewWidget wires a widget. configPath is where SaveSettings writes.
func NewWidget(settings *models.Settings, configPath string, poller *Poller, notifyManager *notifications.Manager, sink Sink, logger *slog.Logger) *Widget {
	return &Widget{
		settings:      settings,
		configPath:    configPath,
		poller:        poller,
		notifyManager: notifyManager,
		sink:          sink,
		logger:        logger,
		now:           time.Now,
		refresh:       make(chan struct{}, 1),
		resetTimer:    make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
	}
}

// SetVisibility makes every signal on ch trigger an immediate poll.
// Must be called before Run.
func (w *Widget) SetVisibility(ch <-chan struct{}) {
	w.visible = ch
}

// Run polls immediately and then on every tick until ctx is done or Stop is called
func (w *Widget) Run(ctx context.Context) {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.isRunning = false
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.settings.Interval())
	defer ticker.Stop()

	w.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			w.Poll(ctx)
		case <-w.refresh:
			w.Poll(ctx)
		case _, ok := <-w.visible:
			if !ok {
				w.visible = nil
				continue
			}
			w.logger.Debug("visibility regained, polling")
			w.Poll(ctx)
		case <-w.resetTimer:
			ticker.Reset(w.settings.Interval())
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends Run
func (w *Widget) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// ForceRefresh asks the loop for an immediate poll
func (w *Widget) ForceRefresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

// Poll runs one poll cycle and renders its outcome
func (w *Widget) Poll(ctx context.Context) {
	if !w.settings.IsConfigured() {
		w.render(ctx, View{
			Record: models.DisplayRecord{Last: placeholderValue},
			State:  models.StateFrozen,
			Unit:   w.unit(),
			Error:  "Widget is not configured. Set the current and graph URLs.",
		})
		return
	}

	readings, err := w.poller.GetData(ctx)
	if errors.Is(err, ErrSuperseded) {
		w.logger.Debug("discarding superseded poll")
		return
	}
	if err != nil {
		w.handleError(ctx, err)
		return
	}

	w.mu.Lock()
	recovered := w.consecutiveErrors > 0
	w.consecutiveErrors = 0
	w.mu.Unlock()
	if recovered {
		w.logger.Info("connection restored")
		w.notifyManager.ConnectionRestored()
	}

	view, err := w.buildView(readings)
	if err != nil {
		w.logger.Error("preparing display", logging.Err(err))
		return
	}

	w.mu.Lock()
	w.lastView = &view
	w.mu.Unlock()

	if err := w.notifyManager.CheckAndNotify(view.Record, view.State, readings[0].Value); err != nil {
		w.logger.Warn("sending alert", logging.Err(err))
	}

	w.render(ctx, view)
}

func (w *Widget) handleError(ctx context.Context, err error) {
	w.mu.Lock()
	w.consecutiveErrors++
	errorCount := w.consecutiveErrors
	w.mu.Unlock()

	logPollError(w.logger, errorCount, err)

	message := errorMessage(err)
	view := View{
		Record: models.DisplayRecord{Last: placeholderValue},
		Unit:   w.unit(),
	}
	// Age keeps advancing on the last known history
	if rebuilt, buildErr := w.buildView(w.poller.History()); buildErr == nil {
		view = rebuilt
	}
	view.Error = message

	if view.Record.Last == placeholderValue || errorCount >= w.retryLimit() {
		view.State = models.StateFrozen
	}
	if errorCount >= w.retryLimit() {
		if notifyErr := w.notifyManager.NotifyConnectionLost(message); notifyErr != nil {
			w.logger.Warn("sending connection alert", logging.Err(notifyErr))
		}
	}

	w.render(ctx, view)
}

func (w *Widget) buildView(readings []models.Reading) (View, error) {
	settings := w.settings.Clone()

	record, err := display.Prepare(readings, display.Options{
		UnitsInMmol: settings.UnitsInMmol,
		CalcTrend:   settings.CalcTrend,
	}, w.now())
	if err != nil {
		return View{}, err
	}

	values := lo.Map(readings, func(_ models.Reading, i int) float64 {
		return units.Convert(readings[len(readings)-1-i].Value, settings.UnitsInMmol)
	})

	return View{
		Record:     record,
		State:      settings.PanelState(readings[0].Value, record.AgeMinutes),
		Thresholds: settings.DisplayThresholds(),
		Values:     values,
		Unit:       unitLabel(settings.UnitsInMmol),
		ShowAge:    settings.ShowAge,
	}, nil
}

func (w *Widget) render(ctx context.Context, view View) {
	if err := w.sink.Render(ctx, view); err != nil {
		w.logger.Warn("rendering panel", logging.Err(err))
	}
}

func (w *Widget) retryLimit() int {
	return w.settings.Clone().RetryLimit
}

func (w *Widget) unit() string {
	return unitLabel(w.settings.Clone().UnitsInMmol)
}

func unitLabel(inMmol bool) string {
	if inMmol {
		return "mmol/L"
	}
	return "mg/dL"
}

// errorMessage picks the user-facing text of a poll failure
func errorMessage(err error) string {
	var transportErr *feed.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Message
	}
	return err.Error()
}

// Public methods for binding

// GetSettings returns a copy of the current settings
func (w *Widget) GetSettings() *models.Settings {
	return w.settings.Clone()
}

// SaveSettings applies and persists settings, then polls with them
func (w *Widget) SaveSettings(settings *models.Settings) error {
	previous := w.settings.Clone()
	w.settings.Update(settings)

	if err := w.settings.SaveTo(w.configPath); err != nil {
		return err
	}

	current := w.settings.Clone()
	if current.CurrentURL != previous.CurrentURL ||
		current.GraphURL != previous.GraphURL ||
		current.RequestTimeout != previous.RequestTimeout {
		w.poller.SetSource(feed.NewClient(current.CurrentURL, current.GraphURL, current.Timeout()))
	}
	w.notifyManager.UpdateSettings(w.settings)
	w.logger.Info("settings saved", slog.String("path", w.configPath))

	select {
	case w.resetTimer <- struct{}{}:
	default:
	}
	w.ForceRefresh()
	return nil
}

// GetCurrentView returns the last successfully rendered view, or nil
func (w *Widget) GetCurrentView() *View {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.lastView == nil {
		return nil
	}
	view := *w.lastView
	return &view
}

// SendTestNotification fires a test alert
func (w *Widget) SendTestNotification() error {
	return w.notifyManager.SendTestNotification()
}
